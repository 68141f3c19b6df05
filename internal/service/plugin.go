package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/storage"
	"github.com/dukerupert/pluginhub/internal/store"
	"github.com/dukerupert/pluginhub/internal/websocket"
)

type PluginService struct {
	plugins *store.PluginStore
	files   storage.FileStore
	events  Publisher
	logger  *slog.Logger
}

func NewPluginService(plugins *store.PluginStore, files storage.FileStore, events Publisher, logger *slog.Logger) *PluginService {
	return &PluginService{plugins: plugins, files: files, events: publisherOrNop(events), logger: logger}
}

type PluginInput struct {
	Name             string  `json:"name"`
	BasicDescription string  `json:"basic_description"`
	Description      string  `json:"description"`
	Price            float64 `json:"price"`
	Active           *bool   `json:"active"`
}

// PluginUpdate is a partial update; nil fields are left alone.
type PluginUpdate struct {
	Name             *string  `json:"name"`
	BasicDescription *string  `json:"basic_description"`
	Description      *string  `json:"description"`
	Price            *float64 `json:"price"`
	Active           *bool    `json:"active"`
}

func imageDir(pluginID int64) string {
	return fmt.Sprintf("/images/%d", pluginID)
}

func (s *PluginService) Create(ctx context.Context, in PluginInput) (*model.Plugin, error) {
	p := &model.Plugin{
		Name:             strings.TrimSpace(in.Name),
		BasicDescription: strings.TrimSpace(in.BasicDescription),
		Description:      strings.TrimSpace(in.Description),
		Active:           true,
	}
	switch {
	case p.Name == "", numericName(p.Name):
		return nil, apperr.ErrMissingField.With("name")
	case p.BasicDescription == "":
		return nil, apperr.ErrMissingField.With("basic_description")
	case p.Description == "":
		return nil, apperr.ErrMissingField.With("description")
	case in.Price < 0:
		return nil, apperr.ErrMissingField.With("price")
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.SetPrice(in.Price)

	existing, err := s.plugins.GetByName(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrPluginFound
	}

	created, err := s.plugins.Create(ctx, p)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.ErrPluginFound
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("plugin created", "plugin_id", created.ID, "name", created.Name, "premium", created.Premium)
	s.events.Publish(websocket.NewMessage("plugin", "created", created.ID, nil))
	return created, nil
}

func (s *PluginService) Get(ctx context.Context, id int64) (*model.Plugin, error) {
	return getPlugin(ctx, s.plugins, id)
}

func (s *PluginService) GetByName(ctx context.Context, name string) (*model.Plugin, error) {
	p, err := s.plugins.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.ErrPluginNotFound
	}
	return p, nil
}

// Resolve accepts either a numeric id or a plugin name.
func (s *PluginService) Resolve(ctx context.Context, ref string) (*model.Plugin, error) {
	return resolvePlugin(ctx, s.plugins, ref)
}

func (s *PluginService) List(ctx context.Context, activeOnly bool) ([]model.Plugin, error) {
	plugins, err := s.plugins.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if plugins == nil {
		plugins = []model.Plugin{}
	}
	return plugins, nil
}

func (s *PluginService) Update(ctx context.Context, id int64, u PluginUpdate) (*model.Plugin, error) {
	p, err := getPlugin(ctx, s.plugins, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" || numericName(name) {
			return nil, apperr.ErrMissingField.With("name")
		}
		if name != p.Name {
			other, err := s.plugins.GetByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if other != nil {
				return nil, apperr.ErrPluginFound
			}
			p.Name = name
		}
	}
	if u.BasicDescription != nil {
		p.BasicDescription = strings.TrimSpace(*u.BasicDescription)
	}
	if u.Description != nil {
		p.Description = strings.TrimSpace(*u.Description)
	}
	if u.Price != nil {
		if *u.Price < 0 {
			return nil, apperr.ErrMissingField.With("price")
		}
		p.SetPrice(*u.Price)
	}
	if u.Active != nil {
		p.Active = *u.Active
	}

	updated, err := s.plugins.Update(ctx, p)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.ErrPluginFound
	}
	if err != nil {
		return nil, err
	}
	s.events.Publish(websocket.NewMessage("plugin", "updated", updated.ID, nil))
	return updated, nil
}

// Delete removes the plugin with its versions, reviews and wiki, and returns
// the removed row. Stored files are left for the operator.
func (s *PluginService) Delete(ctx context.Context, id int64) (*model.Plugin, error) {
	p, err := getPlugin(ctx, s.plugins, id)
	if err != nil {
		return nil, err
	}
	if err := s.plugins.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("plugin deleted", "plugin_id", id, "name", p.Name)
	s.events.Publish(websocket.NewMessage("plugin", "deleted", id, nil))
	return p, nil
}

func (s *PluginService) AddImage(ctx context.Context, id int64, r io.Reader, fileName string) (model.FileInfo, error) {
	if _, err := getPlugin(ctx, s.plugins, id); err != nil {
		return model.FileInfo{}, err
	}
	if r == nil || strings.TrimSpace(fileName) == "" {
		return model.FileInfo{}, apperr.ErrMissingField.With("file")
	}
	return s.files.Save(ctx, imageDir(id), r, fileName)
}

func (s *PluginService) ListImages(ctx context.Context, id int64) ([]model.FileInfo, error) {
	if _, err := getPlugin(ctx, s.plugins, id); err != nil {
		return nil, err
	}
	files, err := s.files.List(ctx, imageDir(id))
	if errors.Is(err, apperr.ErrFolderNotFound) {
		return []model.FileInfo{}, nil
	}
	return files, err
}

func (s *PluginService) DeleteImage(ctx context.Context, id int64, fileName string) (model.FileInfo, error) {
	if _, err := getPlugin(ctx, s.plugins, id); err != nil {
		return model.FileInfo{}, err
	}
	return s.files.Delete(ctx, path.Join(imageDir(id), path.Base("/"+fileName)))
}
