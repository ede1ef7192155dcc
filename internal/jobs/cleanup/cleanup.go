package cleanup

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Name identifica la tarea en el scheduler y en los logs.
const Name = "verification_code_cleanup"

type expiredCodeSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Job borra los códigos de verificación expirados.
type Job struct {
	sweeper expiredCodeSweeper
	logger  *zap.Logger
}

func New(sweeper expiredCodeSweeper, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{sweeper: sweeper, logger: logger}
}

func (j *Job) Run(ctx context.Context) error {
	if j.sweeper == nil {
		return nil
	}

	deleted, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired verification codes: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("cleanup expired verification codes completed", zap.Int64("deleted", deleted))
		return nil
	}
	j.logger.Debug("no expired verification codes")
	return nil
}
