package usecase

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	domainCache "github.com/JarvisJ/plex-ai/domains/cache"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/validations"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

const (
	defaultPageSize  = 50
	allItemsPageSize = 200
)

type mediaService struct {
	gateway domainMedia.IPlexGateway
	cache   domainCache.ICacheUsecase
}

func NewMediaService(gateway domainMedia.IPlexGateway, cache domainCache.ICacheUsecase) domainMedia.IMediaUsecase {
	return &mediaService{gateway: gateway, cache: cache}
}

// cached returns the entry under key, or loads, stores and returns it. Cache
// failures degrade to a load; only load errors are returned.
func cached[T any](ctx context.Context, cache domainCache.ICacheUsecase, key string, load func() (T, error)) (T, error) {
	var out T
	found, err := cache.Get(ctx, key, &out)
	if err != nil && !errors.Is(err, domainCache.ErrDeserialization) {
		logrus.WithError(err).WithField("key", key).Warn("[MEDIA] cache read failed")
	}
	if found && err == nil {
		return out, nil
	}

	out, err = load()
	if err != nil {
		return out, err
	}
	if err := cache.Set(ctx, key, out, 0); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("[MEDIA] cache write failed")
	}
	return out, nil
}

func (s *mediaService) GetServers(ctx context.Context, session domainMedia.Session) ([]domainMedia.Server, error) {
	key := s.cache.MakeKey("servers", session.UserID)
	return cached(ctx, s.cache, key, func() ([]domainMedia.Server, error) {
		return s.gateway.Servers(ctx, session.PlexToken)
	})
}

func (s *mediaService) GetLibraries(ctx context.Context, session domainMedia.Session, serverName string) ([]domainMedia.Library, error) {
	if err := validations.ValidateServerName(ctx, serverName); err != nil {
		return nil, err
	}
	key := s.cache.MakeKey("libraries", session.UserID, serverName)
	return cached(ctx, s.cache, key, func() ([]domainMedia.Library, error) {
		server, err := s.gateway.Connect(ctx, session.PlexToken, serverName)
		if err != nil {
			return nil, err
		}
		return s.gateway.Libraries(ctx, server)
	})
}

func (s *mediaService) GetLibraryItems(ctx context.Context, session domainMedia.Session, req domainMedia.LibraryItemsRequest) (domainMedia.PaginatedResponse, error) {
	if err := validations.ValidateLibraryItems(ctx, req); err != nil {
		return domainMedia.PaginatedResponse{}, err
	}
	if req.Limit == 0 {
		req.Limit = defaultPageSize
	}

	key := s.cache.MakeKey("library_items", session.UserID, req.ServerName, req.LibraryKey, req.Offset, req.Limit)
	return cached(ctx, s.cache, key, func() (domainMedia.PaginatedResponse, error) {
		server, err := s.gateway.Connect(ctx, session.PlexToken, req.ServerName)
		if err != nil {
			return domainMedia.PaginatedResponse{}, err
		}
		items, total, err := s.gateway.LibraryItems(ctx, server, req.LibraryKey, req.Offset, req.Limit)
		if err != nil {
			return domainMedia.PaginatedResponse{}, err
		}
		return domainMedia.PaginatedResponse{
			Items:   items,
			Total:   total,
			Offset:  req.Offset,
			Limit:   req.Limit,
			HasMore: req.Offset+req.Limit < total,
		}, nil
	})
}

func (s *mediaService) GetAllLibraryItems(ctx context.Context, session domainMedia.Session, serverName, mediaType string) ([]domainMedia.MediaItem, error) {
	if err := validations.ValidateServerName(ctx, serverName); err != nil {
		return nil, err
	}
	key := s.cache.MakeKey("all_items", session.UserID, serverName, mediaType)
	return cached(ctx, s.cache, key, func() ([]domainMedia.MediaItem, error) {
		libraries, err := s.GetLibraries(ctx, session, serverName)
		if err != nil {
			return nil, err
		}
		server, err := s.gateway.Connect(ctx, session.PlexToken, serverName)
		if err != nil {
			return nil, err
		}

		items := []domainMedia.MediaItem{}
		for _, lib := range libraries {
			if mediaType != "" && lib.Type != mediaType {
				continue
			}
			for offset := 0; ; offset += allItemsPageSize {
				page, total, err := s.gateway.LibraryItems(ctx, server, lib.Key, offset, allItemsPageSize)
				if err != nil {
					return nil, err
				}
				items = append(items, page...)
				if len(page) == 0 || offset+allItemsPageSize >= total {
					break
				}
			}
		}
		logrus.WithFields(logrus.Fields{
			"server": serverName,
			"type":   mediaType,
			"items":  len(items),
		}).Debug("[MEDIA] library snapshot loaded")
		return items, nil
	})
}

func thumbnailKey(cache domainCache.ICacheUsecase, req domainMedia.ThumbnailRequest) string {
	if req.Width > 0 {
		return cache.MakeSharedKey("thumb", req.ServerName, req.Path, req.Width)
	}
	return cache.MakeSharedKey("thumb", req.ServerName, req.Path)
}

// GetThumbnail serves poster art from the shared binary cache, fetching and
// storing it on a miss. A positive width stores a resized JPEG under its own key.
func (s *mediaService) GetThumbnail(ctx context.Context, session domainMedia.Session, req domainMedia.ThumbnailRequest) (domainMedia.Thumbnail, error) {
	if err := validations.ValidateThumbnail(ctx, req); err != nil {
		return domainMedia.Thumbnail{}, err
	}

	key := thumbnailKey(s.cache, req)
	data, found, err := s.cache.GetBinary(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("[MEDIA] thumbnail cache read failed")
	}
	if found {
		return domainMedia.Thumbnail{Data: data, ContentType: http.DetectContentType(data), CacheHit: true}, nil
	}

	server, err := s.gateway.Connect(ctx, session.PlexToken, req.ServerName)
	if err != nil {
		return domainMedia.Thumbnail{}, err
	}
	data, contentType, err := s.gateway.Thumbnail(ctx, server, req.Path)
	if err != nil {
		return domainMedia.Thumbnail{}, err
	}
	if req.Width > 0 {
		if resized, err := resizeJPEG(data, req.Width); err == nil {
			data, contentType = resized, "image/jpeg"
		} else {
			logrus.WithError(err).WithField("path", req.Path).Warn("[MEDIA] thumbnail resize failed, serving original")
		}
	}

	if err := s.cache.SetBinary(ctx, key, data, 0); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("[MEDIA] thumbnail cache write failed")
	}
	logrus.WithFields(logrus.Fields{
		"server": req.ServerName,
		"size":   humanize.Bytes(uint64(len(data))),
	}).Debug("[MEDIA] thumbnail fetched")

	return domainMedia.Thumbnail{Data: data, ContentType: contentType}, nil
}

func resizeJPEG(data []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *mediaService) GetWatchlist(ctx context.Context, session domainMedia.Session) ([]domainMedia.WatchlistItem, error) {
	key := s.cache.MakeKey("watchlist", session.UserID)
	return cached(ctx, s.cache, key, func() ([]domainMedia.WatchlistItem, error) {
		return s.gateway.Watchlist(ctx, session.PlexToken)
	})
}

func (s *mediaService) watchlistItem(ctx context.Context, session domainMedia.Session, serverName, ratingKey string) (domainMedia.MediaItem, error) {
	if err := validations.ValidateWatchlistTarget(ctx, serverName, ratingKey); err != nil {
		return domainMedia.MediaItem{}, err
	}
	server, err := s.gateway.Connect(ctx, session.PlexToken, serverName)
	if err != nil {
		return domainMedia.MediaItem{}, err
	}
	return s.gateway.Item(ctx, server, ratingKey)
}

func (s *mediaService) GetWatchlistStatus(ctx context.Context, session domainMedia.Session, serverName, ratingKey string) (domainMedia.WatchlistStatus, error) {
	item, err := s.watchlistItem(ctx, session, serverName, ratingKey)
	if err != nil {
		return domainMedia.WatchlistStatus{}, err
	}
	on, err := s.gateway.OnWatchlist(ctx, session.PlexToken, item.GUID)
	if err != nil {
		return domainMedia.WatchlistStatus{}, err
	}
	return domainMedia.WatchlistStatus{RatingKey: ratingKey, Title: item.Title, OnWatchlist: on}, nil
}

func (s *mediaService) AddToWatchlist(ctx context.Context, session domainMedia.Session, serverName, ratingKey string) (domainMedia.WatchlistStatus, error) {
	return s.setWatchlisted(ctx, session, serverName, ratingKey, true)
}

func (s *mediaService) RemoveFromWatchlist(ctx context.Context, session domainMedia.Session, serverName, ratingKey string) (domainMedia.WatchlistStatus, error) {
	return s.setWatchlisted(ctx, session, serverName, ratingKey, false)
}

// setWatchlisted updates the watchlist and drops the cached copy so the next
// read reflects the change.
func (s *mediaService) setWatchlisted(ctx context.Context, session domainMedia.Session, serverName, ratingKey string, watchlisted bool) (domainMedia.WatchlistStatus, error) {
	item, err := s.watchlistItem(ctx, session, serverName, ratingKey)
	if err != nil {
		return domainMedia.WatchlistStatus{}, err
	}
	if err := s.gateway.SetWatchlisted(ctx, session.PlexToken, item.GUID, watchlisted); err != nil {
		return domainMedia.WatchlistStatus{}, err
	}
	if _, err := s.cache.Delete(ctx, s.cache.MakeKey("watchlist", session.UserID)); err != nil {
		logrus.WithError(err).Warn("[MEDIA] could not invalidate cached watchlist")
	}
	return domainMedia.WatchlistStatus{RatingKey: ratingKey, Title: item.Title, OnWatchlist: watchlisted}, nil
}
