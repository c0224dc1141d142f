package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/digkill/LogoForge/internal/metrics"
	"github.com/digkill/LogoForge/internal/models"
	"github.com/digkill/LogoForge/internal/openai"
	"github.com/digkill/LogoForge/internal/repository"
)

const (
	maxLogosPerRequest = 3
	maxReferenceImages = 4
	defaultPageSize    = 12
	maxPageSize        = 50
)

// ImageModel refines prompts and renders images.
type ImageModel interface {
	Complete(ctx context.Context, in openai.CompletionRequest) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImageStore copies provider images into durable storage.
type ImageStore interface {
	Mirror(ctx context.Context, owner, sourceURL string) (string, error)
}

type LogoService struct {
	logos     *repository.LogoRepository
	favorites *repository.FavoriteRepository
	credits   *CreditService
	model     ImageModel
	store     ImageStore
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewLogoService(
	logos *repository.LogoRepository,
	favorites *repository.FavoriteRepository,
	credits *CreditService,
	model ImageModel,
	store ImageStore,
	m *metrics.Metrics,
	log *slog.Logger,
) *LogoService {
	if log == nil {
		log = slog.Default()
	}
	return &LogoService{
		logos:     logos,
		favorites: favorites,
		credits:   credits,
		model:     model,
		store:     store,
		metrics:   m,
		log:       log,
	}
}

type LogoRequest struct {
	BusinessName string   `json:"businessName"`
	Slogan       string   `json:"slogan"`
	Industry     string   `json:"industry"`
	ColorPalette string   `json:"colorPalette"`
	LogoType     string   `json:"logoType"`
	Sketchs      []string `json:"sketchs"`
	UserID       string   `json:"userId"`
}

type LogoResult struct {
	ImageURLs        []string     `json:"image_urls"`
	CreatedLogo      *models.Logo `json:"createdLogo"`
	RemainingCredits int          `json:"remainingCredits"`
	GeneratedLogos   int          `json:"generatedLogos"`
}

func (r LogoRequest) brief() openai.Brief {
	return openai.Brief{
		BusinessName: strings.TrimSpace(r.BusinessName),
		Slogan:       strings.TrimSpace(r.Slogan),
		Industry:     strings.TrimSpace(r.Industry),
		ColorPalette: strings.TrimSpace(r.ColorPalette),
		LogoType:     strings.TrimSpace(r.LogoType),
	}
}

func (r LogoRequest) validate(mode models.LogoMode, userID string) error {
	switch {
	case strings.TrimSpace(r.BusinessName) == "":
		return invalid("businessName is required")
	case strings.TrimSpace(r.Industry) == "":
		return invalid("industry is required")
	case strings.TrimSpace(r.LogoType) == "":
		return invalid("logoType is required")
	case r.UserID != "" && r.UserID != userID:
		return invalid("userId does not match the authenticated user")
	}

	switch mode {
	case models.LogoModeCreate:
		return nil
	case models.LogoModeSketchToLogo, models.LogoModeLogoToLogo:
		if len(r.Sketchs) == 0 || len(r.Sketchs) > maxReferenceImages {
			return invalid("between 1 and %d reference images are required", maxReferenceImages)
		}
		for _, u := range r.Sketchs {
			if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
				return invalid("reference images must be http(s) URLs")
			}
		}
		return nil
	default:
		return invalid("unknown logo mode %q", mode)
	}
}

// Generate produces up to three logos, bounded by the user's balance, and charges one credit per
// logo actually delivered. The charge and the stored logo commit together.
func (s *LogoService) Generate(ctx context.Context, userID string, mode models.LogoMode, req LogoRequest) (*LogoResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := req.validate(mode, userID); err != nil {
		return nil, err
	}

	balance, err := s.credits.Available(ctx, userID)
	if err != nil {
		return nil, err
	}
	count := min(maxLogosPerRequest, balance.Total())
	if count < 1 {
		return nil, &InsufficientCreditsError{Required: 1, Available: balance.Total()}
	}

	start := time.Now()
	prompt, err := s.refine(ctx, mode, req)
	s.metrics.Generation(string(mode)+"-prompt", start, err)
	if err != nil {
		return nil, fmt.Errorf("refine prompt: %w", err)
	}

	urls := s.render(ctx, userID, mode, prompt, count)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no logo could be generated")
	}

	logo := &models.Logo{
		ID:     uuid.NewString(),
		UserID: userID,
		Prompt: prompt,
		URLs:   urls,
	}
	remaining, err := s.credits.DeductWith(ctx, userID, len(urls), func(tx *sql.Tx) error {
		return s.logos.Create(ctx, tx, logo)
	})
	if err != nil {
		return nil, err
	}
	logo.CreatedAt = time.Now().UTC()
	logo.UpdatedAt = logo.CreatedAt

	s.log.Info("logos generated", "user_id", userID, "mode", mode, "requested", count, "delivered", len(urls))
	return &LogoResult{
		ImageURLs:        urls,
		CreatedLogo:      logo,
		RemainingCredits: remaining.Total(),
		GeneratedLogos:   len(urls),
	}, nil
}

func (s *LogoService) refine(ctx context.Context, mode models.LogoMode, req LogoRequest) (string, error) {
	switch mode {
	case models.LogoModeSketchToLogo:
		return s.model.Complete(ctx, openai.SketchPrompt(req.brief(), req.Sketchs))
	case models.LogoModeLogoToLogo:
		return s.model.Complete(ctx, openai.VariationPrompt(req.brief(), req.Sketchs))
	default:
		return s.model.Complete(ctx, openai.RefinePrompt(req.brief()))
	}
}

// render generates count images concurrently and mirrors them to storage. Failed slots are
// dropped; the order of the successful ones is kept.
func (s *LogoService) render(ctx context.Context, userID string, mode models.LogoMode, prompt string, count int) []string {
	results := make([]string, count)
	var g errgroup.Group
	g.SetLimit(maxLogosPerRequest)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			start := time.Now()
			src, err := s.model.GenerateImage(ctx, prompt)
			if err == nil {
				results[i], err = s.store.Mirror(ctx, userID, src)
			}
			s.metrics.Generation(string(mode), start, err)
			if err != nil {
				s.log.Warn("logo slot failed", "user_id", userID, "slot", i, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	urls := make([]string, 0, count)
	for _, u := range results {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (s *LogoService) List(ctx context.Context, userID string) ([]models.Logo, error) {
	logos, err := s.logos.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list logos: %w", err)
	}
	return logos, nil
}

type LogoDetail struct {
	models.Logo
	Favorite bool `json:"favorite"`
}

func (s *LogoService) owned(ctx context.Context, userID, logoID string) (*models.Logo, error) {
	logo, err := s.logos.GetByID(ctx, logoID)
	if err != nil {
		return nil, fmt.Errorf("get logo: %w", err)
	}
	if logo == nil || logo.UserID != userID {
		return nil, notFound("logo")
	}
	return logo, nil
}

func (s *LogoService) Get(ctx context.Context, userID, logoID string) (*LogoDetail, error) {
	logo, err := s.owned(ctx, userID, logoID)
	if err != nil {
		return nil, err
	}
	fav, err := s.favorites.Exists(ctx, userID, logoID)
	if err != nil {
		return nil, err
	}
	return &LogoDetail{Logo: *logo, Favorite: fav}, nil
}

type CommunityPage struct {
	Logos      []models.Logo `json:"logos"`
	TotalCount int           `json:"totalCount"`
}

// Community pages through public logos, newest first.
func (s *LogoService) Community(ctx context.Context, skip, take int) (*CommunityPage, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = defaultPageSize
	}
	take = min(take, maxPageSize)

	logos, err := s.logos.ListPublic(ctx, skip, take)
	if err != nil {
		return nil, err
	}
	total, err := s.logos.CountPublic(ctx)
	if err != nil {
		return nil, err
	}
	return &CommunityPage{Logos: logos, TotalCount: total}, nil
}

func (s *LogoService) Favorites(ctx context.Context, userID string) ([]models.Logo, error) {
	return s.logos.ListFavorites(ctx, userID)
}

// ToggleFavorite flips the favorite mark and returns the new state.
func (s *LogoService) ToggleFavorite(ctx context.Context, userID, logoID string) (bool, error) {
	if _, err := s.owned(ctx, userID, logoID); err != nil {
		return false, err
	}
	fav, err := s.favorites.Exists(ctx, userID, logoID)
	if err != nil {
		return false, err
	}
	if fav {
		return false, s.favorites.Remove(ctx, userID, logoID)
	}
	return true, s.favorites.Add(ctx, userID, logoID)
}

// TogglePublic flips community visibility and returns the updated logo.
func (s *LogoService) TogglePublic(ctx context.Context, userID, logoID string) (*models.Logo, error) {
	logo, err := s.owned(ctx, userID, logoID)
	if err != nil {
		return nil, err
	}
	logo.Public = !logo.Public
	if err := s.logos.SetPublic(ctx, logoID, logo.Public); err != nil {
		return nil, err
	}
	return logo, nil
}
