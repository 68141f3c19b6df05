package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/dukerupert/pluginhub/internal/apperr"
	"github.com/dukerupert/pluginhub/internal/model"
	"github.com/dukerupert/pluginhub/internal/storage"
	"github.com/dukerupert/pluginhub/internal/store"
	"github.com/dukerupert/pluginhub/internal/websocket"
)

// VersionService manages released jars and the single-use links used to
// download them.
type VersionService struct {
	plugins  *store.PluginStore
	versions *store.VersionStore
	links    *store.DownloadLinkStore
	access   *AccessService
	files    storage.FileStore
	events   Publisher
	logger   *slog.Logger
}

func NewVersionService(
	plugins *store.PluginStore,
	versions *store.VersionStore,
	links *store.DownloadLinkStore,
	access *AccessService,
	files storage.FileStore,
	events Publisher,
	logger *slog.Logger,
) *VersionService {
	return &VersionService{
		plugins:  plugins,
		versions: versions,
		links:    links,
		access:   access,
		files:    files,
		events:   publisherOrNop(events),
		logger:   logger,
	}
}

// Requester identifies who asked for a download. AccountID is empty for
// anonymous callers.
type Requester struct {
	AccountID string
	IP        string
}

type VersionUpdate struct {
	Version   *string `json:"version"`
	Changelog *string `json:"changelog"`
}

func versionDir(pluginID int64) string {
	return fmt.Sprintf("/versions/%d", pluginID)
}

func jarName(pluginName, version string) string {
	return fmt.Sprintf("%s-%s.jar", pluginName, version)
}

func parseVersion(v string) (*semver.Version, error) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return nil, apperr.ErrInvalidVersion.With(v)
	}
	return sv, nil
}

func (s *VersionService) getVersion(ctx context.Context, pluginID int64, version string) (*model.PluginVersion, error) {
	v, err := s.versions.Get(ctx, pluginID, version)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperr.ErrVersionNotFound
	}
	return v, nil
}

// Upload stores a new jar and records the version. The plugin's current
// version only moves forward.
func (s *VersionService) Upload(ctx context.Context, pluginID int64, version, changelog string, r io.Reader, fileName string) (*model.PluginVersion, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, apperr.ErrMissingField.With("version")
	}
	if r == nil || fileName == "" {
		return nil, apperr.ErrMissingField.With("file")
	}
	sv, err := parseVersion(version)
	if err != nil {
		return nil, err
	}
	p, err := getPlugin(ctx, s.plugins, pluginID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVersionFree(ctx, pluginID, sv, 0); err != nil {
		return nil, err
	}

	info, err := s.files.Save(ctx, versionDir(pluginID), r, jarName(p.Name, version))
	if err != nil {
		return nil, fmt.Errorf("save jar: %w", err)
	}

	created, err := s.versions.Create(ctx, &model.PluginVersion{
		PluginID:   pluginID,
		PluginName: p.Name,
		Version:    version,
		Changelog:  changelog,
		FileName:   info.Name,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.ErrVersionFound
	}
	if err != nil {
		return nil, err
	}

	if newer(sv, p.Version) {
		if err := s.plugins.SetVersion(ctx, pluginID, version); err != nil {
			return nil, err
		}
	}

	s.logger.Info("version released", "plugin_id", pluginID, "version", version, "size", info.SizeHuman)
	s.events.Publish(websocket.NewMessage("version", "released", pluginID, map[string]any{"version": version}))
	return created, nil
}

// newer reports whether v should replace current as the plugin's version.
// ensureVersionFree fails with VersionFound when another row of the plugin
// holds a version equal to sv, so "1.0" and "1.0.0" count as the same.
func (s *VersionService) ensureVersionFree(ctx context.Context, pluginID int64, sv *semver.Version, exceptID int64) error {
	versions, err := s.versions.ListByPlugin(ctx, pluginID)
	if err != nil {
		return err
	}
	for _, other := range versions {
		if other.ID == exceptID {
			continue
		}
		ov, err := semver.NewVersion(other.Version)
		if err != nil {
			continue
		}
		if ov.Equal(sv) {
			return apperr.ErrVersionFound
		}
	}
	return nil
}

func newer(v *semver.Version, current string) bool {
	if current == "" {
		return true
	}
	cur, err := semver.NewVersion(current)
	if err != nil {
		return true
	}
	return v.GreaterThan(cur)
}

func (s *VersionService) Get(ctx context.Context, pluginID int64, version string) (*model.PluginVersion, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	return s.getVersion(ctx, pluginID, version)
}

func (s *VersionService) List(ctx context.Context, pluginID int64) ([]model.PluginVersion, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByPlugin(ctx, pluginID)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []model.PluginVersion{}
	}
	return versions, nil
}

func (s *VersionService) Update(ctx context.Context, pluginID int64, version string, u VersionUpdate) (*model.PluginVersion, error) {
	p, err := getPlugin(ctx, s.plugins, pluginID)
	if err != nil {
		return nil, err
	}
	v, err := s.getVersion(ctx, pluginID, version)
	if err != nil {
		return nil, err
	}

	changelog := v.Changelog
	if u.Changelog != nil {
		changelog = *u.Changelog
	}
	target := v.Version
	fileName := v.FileName
	if u.Version != nil && strings.TrimSpace(*u.Version) != v.Version {
		target = strings.TrimSpace(*u.Version)
		if target == "" {
			return nil, apperr.ErrMissingField.With("version")
		}
		sv, err := parseVersion(target)
		if err != nil {
			return nil, err
		}
		if err := s.ensureVersionFree(ctx, pluginID, sv, v.ID); err != nil {
			return nil, err
		}
		info, err := s.files.Rename(ctx, path.Join(versionDir(pluginID), v.FileName), jarName(p.Name, target))
		if err != nil && !errors.Is(err, apperr.ErrFileNotFound) {
			return nil, fmt.Errorf("rename jar: %w", err)
		}
		if err == nil {
			fileName = info.Name
		}
	}

	updated, err := s.versions.Update(ctx, v.ID, target, changelog, fileName)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.ErrVersionFound
	}
	if err != nil {
		return nil, err
	}
	if target != v.Version {
		if err := s.refreshCurrent(ctx, pluginID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Delete removes the version and its jar and returns the removed row.
func (s *VersionService) Delete(ctx context.Context, pluginID int64, version string) (*model.PluginVersion, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	v, err := s.getVersion(ctx, pluginID, version)
	if err != nil {
		return nil, err
	}

	if _, err := s.files.Delete(ctx, path.Join(versionDir(pluginID), v.FileName)); err != nil && !errors.Is(err, apperr.ErrFileNotFound) {
		return nil, fmt.Errorf("delete jar: %w", err)
	}
	if err := s.versions.Delete(ctx, v.ID); err != nil {
		return nil, err
	}
	if err := s.refreshCurrent(ctx, pluginID); err != nil {
		return nil, err
	}

	s.events.Publish(websocket.NewMessage("version", "deleted", pluginID, map[string]any{"version": version}))
	return v, nil
}

// refreshCurrent points the plugin at its highest remaining version.
func (s *VersionService) refreshCurrent(ctx context.Context, pluginID int64) error {
	versions, err := s.versions.ListByPlugin(ctx, pluginID)
	if err != nil {
		return err
	}
	var best *semver.Version
	current := ""
	for _, v := range versions {
		sv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if best == nil || sv.GreaterThan(best) {
			best, current = sv, v.Version
		}
	}
	return s.plugins.SetVersion(ctx, pluginID, current)
}

func (s *VersionService) ListFiles(ctx context.Context, pluginID int64) ([]model.FileInfo, error) {
	if _, err := getPlugin(ctx, s.plugins, pluginID); err != nil {
		return nil, err
	}
	files, err := s.files.List(ctx, versionDir(pluginID))
	if errors.Is(err, apperr.ErrFolderNotFound) {
		return []model.FileInfo{}, nil
	}
	return files, err
}

// RequestDownload issues a single-use link bound to the requester.
func (s *VersionService) RequestDownload(ctx context.Context, req Requester, pluginID int64, version string) (*model.DownloadLink, error) {
	if req.IP == "" {
		return nil, apperr.ErrInvalidRemoteAddress
	}
	p, err := getPlugin(ctx, s.plugins, pluginID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getVersion(ctx, pluginID, version); err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, req.AccountID, p); err != nil {
		return nil, err
	}

	link := &model.DownloadLink{
		ID:        uuid.NewString(),
		PluginID:  pluginID,
		Version:   version,
		IPAddress: req.IP,
	}
	if req.AccountID != "" {
		link.AccountID = &req.AccountID
	}
	created, err := s.links.Create(ctx, link)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("download link issued", "link_id", created.ID, "plugin_id", pluginID, "version", version)
	return created, nil
}

// RedeemDownload consumes the link and opens the jar. The caller must close
// the returned file.
func (s *VersionService) RedeemDownload(ctx context.Context, req Requester, linkID string) (*storage.File, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link == nil || !link.Available {
		return nil, apperr.ErrDownloadLinkNotFound
	}

	if link.AccountID != nil {
		if req.AccountID != *link.AccountID {
			return nil, apperr.ErrInvalidUserDownload
		}
	} else if req.IP != link.IPAddress {
		return nil, apperr.ErrInvalidUserDownload
	}

	v, err := s.getVersion(ctx, link.PluginID, link.Version)
	if err != nil {
		return nil, err
	}
	f, err := s.files.Fetch(ctx, path.Join(versionDir(v.PluginID), v.FileName))
	if errors.Is(err, apperr.ErrFileNotFound) {
		return nil, apperr.ErrVersionFileNotFound
	}
	if err != nil {
		return nil, err
	}

	won, err := s.links.Consume(ctx, link.ID)
	if err != nil || !won {
		f.Close()
		if err != nil {
			return nil, err
		}
		return nil, apperr.ErrDownloadLinkNotFound
	}
	if err := s.versions.IncrementDownloads(ctx, v.ID); err != nil {
		s.logger.Error("increment downloads", "version_id", v.ID, "error", err)
	}
	return f, nil
}

// PurgeLinks removes links never redeemed within ttl.
func (s *VersionService) PurgeLinks(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	return s.links.DeleteUnusedBefore(ctx, time.Now().Add(-ttl))
}
