// Package service holds the marketplace operations. Handlers only translate
// HTTP to these calls; every rule about who may do what lives here.
package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/store"
	"github.com/dukerupert/pluginhub/internal/websocket"
)

// Publisher receives marketplace events. *websocket.Hub implements it.
type Publisher interface {
	Publish(msg websocket.Message)
}

type nopPublisher struct{}

func (nopPublisher) Publish(websocket.Message) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func getPlugin(ctx context.Context, plugins *store.PluginStore, id int64) (*model.Plugin, error) {
	p, err := plugins.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.ErrPluginNotFound
	}
	return p, nil
}

// numericName reports whether a plugin name would be read as an id by
// resolvePlugin. Such names are not allowed.
func numericName(name string) bool {
	_, err := strconv.ParseInt(name, 10, 64)
	return err == nil
}

// resolvePlugin looks a plugin up by numeric id, falling back to its name.
func resolvePlugin(ctx context.Context, plugins *store.PluginStore, ref string) (*model.Plugin, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.ErrPluginNotFound
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		p, err := plugins.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	p, err := plugins.GetByName(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.ErrPluginNotFound
	}
	return p, nil
}

func getProfile(ctx context.Context, profiles *store.ProfileStore, id string) (*model.Profile, error) {
	if id == "" {
		return nil, apperr.ErrProfileNotFound
	}
	p, err := profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.ErrProfileNotFound
	}
	return p, nil
}
