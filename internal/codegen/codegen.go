// Package codegen genera códigos aleatorios y reserva códigos únicos con un
// número acotado de intentos.
package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

var (
	// ErrCodeGeneration indica que se agotaron los intentos sin encontrar un código libre.
	ErrCodeGeneration = errors.New("code generation failed")

	// ErrCodeTaken lo devuelve una función de reserva cuando el código ya existe.
	ErrCodeTaken = errors.New("code already taken")

	ErrEmptyCharset  = errors.New("charset is empty")
	ErrInvalidLength = errors.New("length must be positive")
)

// Generator produce códigos a partir de una fuente de aleatoriedad.
type Generator struct {
	rand io.Reader
}

// New devuelve un Generator respaldado por crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewWithSource permite inyectar la fuente de aleatoriedad (tests).
func NewWithSource(src io.Reader) *Generator {
	if src == nil {
		src = rand.Reader
	}
	return &Generator{rand: src}
}

// Generate toma length símbolos de charset de forma independiente y uniforme.
func (g *Generator) Generate(length int, charset string) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	symbols := []rune(charset)
	if len(symbols) == 0 {
		return "", ErrEmptyCharset
	}
	max := big.NewInt(int64(len(symbols)))
	out := make([]rune, length)
	for i := range out {
		n, err := rand.Int(g.rand, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = symbols[n.Int64()]
	}
	return string(out), nil
}

// Policy describe un espacio de códigos y su presupuesto de intentos.
type Policy struct {
	Length      int
	Charset     string
	MaxAttempts int
}

// ReserveFunc intenta persistir code; devuelve ErrCodeTaken (o un error que lo
// envuelva) si el código colisiona con uno existente.
type ReserveFunc func(ctx context.Context, code string) error

// Allocate genera candidatos y llama a reserve hasta que uno se persiste o se
// agota p.MaxAttempts. Cualquier error distinto de ErrCodeTaken se devuelve tal cual.
func (g *Generator) Allocate(ctx context.Context, p Policy, reserve ReserveFunc) (string, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Generate(p.Length, p.Charset)
		if err != nil {
			return "", err
		}
		err = reserve(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no free code after %d attempts", ErrCodeGeneration, attempts)
}
