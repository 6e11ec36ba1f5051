package source

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/config"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

const (
	FormatAuto     = "auto"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Store reads raw document bytes by key.
type Store interface {
	Type() string
	Read(ctx context.Context, key string) ([]byte, error)
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewStore(typ string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(typ))
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported source type: %q", appErr.ErrConfiguration, typ)
	}
	return factory(args)
}

// Load reads the configured document and normalises it to plain text.
// Failures are configuration errors since the service cannot start without
// its document.
func Load(ctx context.Context, cfg config.SourceConfig) (*model.Document, error) {
	store, err := NewStore(cfg.Type, cfg.Data)
	if err != nil {
		return nil, err
	}
	raw, err := store.Read(ctx, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read source %s: %w", appErr.ErrConfiguration, cfg.Path, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: source %s is not valid utf-8", appErr.ErrConfiguration, cfg.Path)
	}
	content := string(raw)
	format := resolveFormat(cfg.Format, cfg.Path)
	if format == FormatMarkdown {
		content, err = MarkdownToText(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parse markdown %s: %w", appErr.ErrConfiguration, cfg.Path, err)
		}
	}
	logutil.GetLogger(ctx).Info("source loaded",
		zap.String("type", store.Type()),
		zap.String("path", cfg.Path),
		zap.String("format", format),
		zap.Int("bytes", len(raw)),
		zap.Int("chars", utf8.RuneCountInString(content)),
	)
	return &model.Document{Source: cfg.Path, Content: content}, nil
}

func resolveFormat(format, path string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != FormatAuto {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: encode source config: %w", appErr.ErrConfiguration, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode source config: %w", appErr.ErrConfiguration, err)
	}
	return nil
}
