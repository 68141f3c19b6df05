package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/store"
)

type WikiService struct {
	wiki    *store.WikiStore
	plugins *store.PluginStore
	access  *AccessService
	logger  *slog.Logger
}

func NewWikiService(wiki *store.WikiStore, plugins *store.PluginStore, access *AccessService, logger *slog.Logger) *WikiService {
	return &WikiService{wiki: wiki, plugins: plugins, access: access, logger: logger}
}

type TopicInput struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// readable loads the plugin and checks that accountID may read its wiki.
func (s *WikiService) readable(ctx context.Context, accountID string, pluginID int64) (*model.Plugin, error) {
	p, err := getPlugin(ctx, s.plugins, pluginID)
	if err != nil {
		return nil, err
	}
	err = s.access.Authorize(ctx, accountID, p)
	if errors.Is(err, apperr.ErrInvalidJwtToken) || errors.Is(err, apperr.ErrProfileNotFound) {
		return nil, apperr.ErrProfileNoAccess
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns every topic of the plugin's wiki. A plugin without topics has
// an empty wiki.
func (s *WikiService) Get(ctx context.Context, accountID string, pluginID int64) (*model.Wiki, error) {
	if _, err := s.readable(ctx, accountID, pluginID); err != nil {
		return nil, err
	}
	topics, err := s.wiki.ListTopics(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	w := &model.Wiki{ID: pluginID, Topics: make(map[string]model.WikiTopic, len(topics))}
	for _, t := range topics {
		w.Topics[t.Name] = t
	}
	return w, nil
}

func (s *WikiService) GetTopic(ctx context.Context, accountID string, pluginID int64, name string) (*model.WikiTopic, error) {
	if _, err := s.readable(ctx, accountID, pluginID); err != nil {
		return nil, err
	}
	return s.getTopic(ctx, pluginID, name)
}

func (s *WikiService) getTopic(ctx context.Context, pluginID int64, name string) (*model.WikiTopic, error) {
	t, err := s.wiki.GetTopic(ctx, pluginID, name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrWikiTopicNotFound
	}
	return t, nil
}

func (s *WikiService) AddTopic(ctx context.Context, pluginID int64, in TopicInput) (*model.WikiTopic, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	t := model.WikiTopic{
		PluginID: pluginID,
		Name:     strings.TrimSpace(in.Name),
		Title:    strings.TrimSpace(in.Title),
		HTML:     in.HTML,
	}
	if t.Name == "" {
		return nil, apperr.ErrMissingField.With("name")
	}
	if err := s.wiki.CreateTopic(ctx, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.ErrWikiTopicFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *WikiService) UpdateTopic(ctx context.Context, pluginID int64, name string, in TopicInput) (*model.WikiTopic, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	t := model.WikiTopic{PluginID: pluginID, Name: name, Title: strings.TrimSpace(in.Title), HTML: in.HTML}
	ok, err := s.wiki.UpdateTopic(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrWikiTopicNotFound
	}
	return &t, nil
}

func (s *WikiService) DeleteTopic(ctx context.Context, pluginID int64, name string) (*model.WikiTopic, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	t, err := s.getTopic(ctx, pluginID, name)
	if err != nil {
		return nil, err
	}
	if _, err := s.wiki.DeleteTopic(ctx, pluginID, name); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete drops the whole wiki. It fails when there is nothing to drop.
func (s *WikiService) Delete(ctx context.Context, pluginID int64) error {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return err
	}
	n, err := s.wiki.DeleteAll(ctx, pluginID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrWikiNotFound
	}
	s.logger.Info("wiki deleted", "plugin_id", pluginID, "topics", n)
	return nil
}
