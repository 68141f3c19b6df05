package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/pluginhub/internal/apperr"
)

func TestPluginScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	foo := env.createPlugin(t, "Foo", 0)
	require.False(t, foo.Premium)
	require.Zero(t, foo.Price)
	env.createProfile(t, "acc-1")
	_, err := env.access.AddAccess(ctx, "acc-1", "Foo")
	require.NoError(t, err)

	_, err = env.plugins.Create(ctx, PluginInput{Name: "Foo", BasicDescription: "b", Description: "d"})
	require.ErrorIs(t, err, apperr.ErrPluginFound)

	price := 25.0
	updated, err := env.plugins.Update(ctx, foo.ID, PluginUpdate{Price: &price})
	require.NoError(t, err)
	require.True(t, updated.Premium)
	require.Equal(t, 25.0, updated.Price)

	_, err = env.access.AddAccess(ctx, "acc-1", "Foo")
	require.ErrorIs(t, err, apperr.ErrProfileAlreadyHasAccess)

	env.createProfile(t, "acc-2")
	_, err = env.access.AddAccess(ctx, "acc-2", "Foo")
	require.ErrorIs(t, err, apperr.ErrPluginIsPremium)

	free := 0.0
	updated, err = env.plugins.Update(ctx, foo.ID, PluginUpdate{Price: &free})
	require.NoError(t, err)
	require.False(t, updated.Premium)

	require.Equal(t, []string{"plugin_created", "access_granted", "plugin_updated", "plugin_updated"}, env.events.types())
}

func TestPluginCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := map[string]PluginInput{
		"no name":        {BasicDescription: "b", Description: "d"},
		"numeric name":   {Name: "7", BasicDescription: "b", Description: "d"},
		"signed numeric": {Name: "-12", BasicDescription: "b", Description: "d"},
		"no basic":       {Name: "A", Description: "d"},
		"no description": {Name: "A", BasicDescription: "b"},
		"negative price": {Name: "A", BasicDescription: "b", Description: "d", Price: -1},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := env.plugins.Create(ctx, in)
			require.ErrorIs(t, err, apperr.ErrMissingField)
		})
	}
}

func TestPluginGetDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.plugins.Get(ctx, 99)
	require.ErrorIs(t, err, apperr.ErrPluginNotFound)
	_, err = env.plugins.Delete(ctx, 99)
	require.ErrorIs(t, err, apperr.ErrPluginNotFound)

	p := env.createPlugin(t, "Foo", 0)
	got, err := env.plugins.Resolve(ctx, "Foo")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	deleted, err := env.plugins.Delete(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Foo", deleted.Name)

	_, err = env.plugins.Get(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrPluginNotFound)
}

func TestPluginRenameConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createPlugin(t, "Foo", 0)
	bar := env.createPlugin(t, "Bar", 0)

	name := "Foo"
	_, err := env.plugins.Update(ctx, bar.ID, PluginUpdate{Name: &name})
	require.ErrorIs(t, err, apperr.ErrPluginFound)

	numeric := "42"
	_, err = env.plugins.Update(ctx, bar.ID, PluginUpdate{Name: &numeric})
	require.ErrorIs(t, err, apperr.ErrMissingField)
}

func TestPluginImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createPlugin(t, "Foo", 0)

	images, err := env.plugins.ListImages(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, images)

	info, err := env.plugins.AddImage(ctx, p.ID, strings.NewReader("png"), "logo.png")
	require.NoError(t, err)
	require.Equal(t, "/images/1/logo.png", info.Path)

	images, err = env.plugins.ListImages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)

	_, err = env.plugins.DeleteImage(ctx, p.ID, "logo.png")
	require.NoError(t, err)
	_, err = env.plugins.DeleteImage(ctx, p.ID, "logo.png")
	require.ErrorIs(t, err, apperr.ErrFileNotFound)
}
