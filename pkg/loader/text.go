package loader

import (
	"context"
	"os"
	"strings"
)

type TextLoader struct{}

func (TextLoader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ToValidUTF8(text, ""), nil
}
