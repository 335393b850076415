package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/cache"
)

// FeaturedPerEntity bounds how many featured records each entity contributes
// to the home page.
const FeaturedPerEntity = 3

// PublicTTL bounds how stale a public page can be on an instance that did
// not perform the write.
const PublicTTL = 30 * time.Second

const featuredKey = "featured"

type Service struct {
	repo     Repo
	uploader Uploader
	public   *cache.Cache[[]models.Record]
	logger   *zap.Logger
}

func NewService(repo Repo, uploader Uploader, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		uploader: uploader,
		public:   cache.New[[]models.Record](PublicTTL, "public_listings", logger),
		logger:   logger,
	}
}

func (s *Service) UploadEnabled() bool {
	return s.uploader != nil && s.uploader.Enabled()
}

// List returns every record of entity, newest first.
func (s *Service) List(ctx context.Context, entity models.Entity) ([]models.Record, error) {
	return s.repo.List(ctx, entity, ListOptions{})
}

// PublicList is List served through the public listing cache.
func (s *Service) PublicList(ctx context.Context, entity models.Entity) ([]models.Record, error) {
	return s.public.GetOrLoad(ctx, cache.Key("list", string(entity)), func(ctx context.Context) ([]models.Record, error) {
		return s.List(ctx, entity)
	})
}

func (s *Service) Get(ctx context.Context, entity models.Entity, id string) (*models.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("record id %q: %w", id, models.ErrNotFound)
	}
	return s.repo.Get(ctx, entity, id)
}

func (s *Service) Create(ctx context.Context, actorID string, entity models.Entity, in models.RecordInput) (*models.Record, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.Insert(ctx, actorID, entity, in)
	if err == nil {
		s.invalidate(entity)
	}
	return rec, err
}

func (s *Service) Update(ctx context.Context, actorID string, entity models.Entity, id string, in models.RecordInput) (*models.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("record id %q: %w", id, models.ErrNotFound)
	}
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.Update(ctx, actorID, entity, id, in)
	if err == nil {
		s.invalidate(entity)
	}
	return rec, err
}

func (s *Service) Delete(ctx context.Context, actorID string, entity models.Entity, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("record id %q: %w", id, models.ErrNotFound)
	}
	if err := s.repo.Delete(ctx, actorID, entity, id); err != nil {
		return err
	}
	s.invalidate(entity)
	return nil
}

func (s *Service) invalidate(entity models.Entity) {
	s.public.Delete(cache.Key("list", string(entity)), featuredKey)
}

// sniffLen is how much of an upload is read to detect its type.
const sniffLen = 512

// Upload stores an image for entity and returns its public URL. The type is
// detected from the content; whatever the browser claimed is ignored.
func (s *Service) Upload(ctx context.Context, actorID string, entity models.Entity, filename string, body io.Reader) (string, error) {
	if !s.UploadEnabled() {
		return "", models.ErrStorageDisabled
	}
	if err := s.repo.AuthorizeWriter(ctx, actorID); err != nil {
		return "", err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("content type %q is not an image: %w", contentType, models.ErrValidation)
	}
	return s.uploader.Upload(ctx, entity, filename, contentType, io.MultiReader(bytes.NewReader(head), body))
}

// Counts fetches the row count of every entity concurrently. Entities whose
// count fails are left out and logged.
func (s *Service) Counts(ctx context.Context) models.DashboardCounts {
	var (
		mu     sync.Mutex
		counts = make(models.DashboardCounts, len(models.Entities))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, info := range models.Entities {
		g.Go(func() error {
			n, err := s.repo.Count(gctx, info.Entity)
			if err != nil {
				s.logger.Warn("Failed to count records", zap.String("entity", string(info.Entity)), zap.Error(err))
				return nil
			}
			mu.Lock()
			counts[info.Entity] = n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return counts
}

// Featured collects the newest featured records of every entity, in entity order.
func (s *Service) Featured(ctx context.Context) ([]models.Record, error) {
	return s.public.GetOrLoad(ctx, featuredKey, s.loadFeatured)
}

func (s *Service) loadFeatured(ctx context.Context) ([]models.Record, error) {
	perEntity := make([][]models.Record, len(models.Entities))
	g, gctx := errgroup.WithContext(ctx)
	for i, info := range models.Entities {
		g.Go(func() error {
			recs, err := s.repo.List(gctx, info.Entity, ListOptions{FeaturedOnly: true, Limit: FeaturedPerEntity})
			if err != nil {
				return err
			}
			perEntity[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("featured records: %w", err)
	}
	var out []models.Record
	for _, recs := range perEntity {
		out = append(out, recs...)
	}
	return out, nil
}

func normalize(in models.RecordInput) (models.RecordInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Title == "" {
		return in, fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	if in.Attributes == nil {
		in.Attributes = map[string]string{}
	}
	return in, nil
}

// ParseAttributes reads "key: value" lines. Blank lines and lines without a
// key are skipped; a repeated key keeps its last value.
func ParseAttributes(text string) map[string]string {
	attrs := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs
}
