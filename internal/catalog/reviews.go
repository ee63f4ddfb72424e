package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
)

const (
	MinRating = 0
	MaxRating = 5
)

// ReviewInput is a new review. Rating is a pointer so that zero is a valid
// rating distinct from a missing one.
type ReviewInput struct {
	Rating *int   `json:"rating" validate:"required,min=0,max=5"`
	Review string `json:"review" validate:"required,max=2000"`
}

// ReviewUpdate changes the non-nil fields of a review.
type ReviewUpdate struct {
	Rating *int    `json:"rating" validate:"omitempty,min=0,max=5"`
	Review *string `json:"review" validate:"omitempty,max=2000"`
}

// ReviewFilter selects reviews. Empty fields match everything.
type ReviewFilter struct {
	Kind     Kind
	RecipeID string
	UserID   string
}

func (f ReviewFilter) cond() storage.Cond {
	var clauses []string
	var args []any
	if f.Kind != "" {
		clauses = append(clauses, "recipe_kind = ?")
		args = append(args, f.Kind)
	}
	if f.RecipeID != "" {
		clauses = append(clauses, "recipe_id = ?")
		args = append(args, f.RecipeID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	return storage.Where(strings.Join(clauses, " AND "), args...)
}

func reviewCond(kind Kind, recipeID, userID string) storage.Cond {
	return ReviewFilter{Kind: kind, RecipeID: recipeID, UserID: userID}.cond()
}

func validRating(r int) bool { return r >= MinRating && r <= MaxRating }

// CreateReview stores userID's review of the recipe. A user reviews each
// recipe at most once.
func (s *Service) CreateReview(ctx context.Context, kind Kind, recipeID, userID string, in ReviewInput) (*Review, error) {
	if in.Rating == nil || !validRating(*in.Rating) {
		return nil, invalid("rating must be between %d and %d", MinRating, MaxRating)
	}
	text := strings.TrimSpace(in.Review)
	if text == "" {
		return nil, invalid("review is required")
	}
	if err := s.recipeExists(ctx, kind, recipeID); err != nil {
		return nil, err
	}
	exists, err := s.reviews.Exists(ctx, reviewCond(kind, recipeID, userID))
	if err != nil {
		return nil, notFound("create review", err, ErrReviewNotFound)
	}
	if exists {
		return nil, ErrReviewExists
	}
	r := &Review{RecipeKind: kind, RecipeID: recipeID, UserID: userID, Rating: *in.Rating, Review: text}
	if err := s.reviews.Create(ctx, r); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrReviewExists
		}
		return nil, notFound("create review", err, ErrReviewNotFound)
	}
	return r, nil
}

// UpdateReview changes userID's review of the recipe.
func (s *Service) UpdateReview(ctx context.Context, kind Kind, recipeID, userID string, upd ReviewUpdate) (*Review, error) {
	values := map[string]any{}
	if upd.Rating != nil {
		if !validRating(*upd.Rating) {
			return nil, invalid("rating must be between %d and %d", MinRating, MaxRating)
		}
		values["rating"] = *upd.Rating
	}
	if err := setTrimmed(values, "review", upd.Review, true); err != nil {
		return nil, err
	}

	cond := reviewCond(kind, recipeID, userID)
	if len(values) > 0 {
		res := s.reviews.DB(ctx).Model(&Review{}).Where(cond.Query, cond.Args...).Updates(values)
		if res.Error != nil {
			return nil, notFound("update review", res.Error, ErrReviewNotFound)
		}
		if res.RowsAffected == 0 {
			return nil, ErrReviewNotFound
		}
	}
	r, err := s.reviews.FindOne(ctx, cond)
	if err != nil {
		return nil, notFound("update review", err, ErrReviewNotFound)
	}
	return r, nil
}

// DeleteReview removes userID's review of the recipe.
func (s *Service) DeleteReview(ctx context.Context, kind Kind, recipeID, userID string) error {
	n, err := s.reviews.DeleteWhere(ctx, reviewCond(kind, recipeID, userID))
	if err != nil {
		return notFound("delete review", err, ErrReviewNotFound)
	}
	if n == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// ListReviews returns reviews matching f newest first. Listing the reviews of
// a missing recipe fails with the recipe's not-found error.
func (s *Service) ListReviews(ctx context.Context, f ReviewFilter, page Page) ([]Review, error) {
	if f.RecipeID != "" {
		if err := s.recipeExists(ctx, f.Kind, f.RecipeID); err != nil {
			return nil, err
		}
	}
	out, err := s.reviews.FindMany(ctx, f.cond(), page.storage())
	if err != nil {
		return nil, notFound("list reviews", err, ErrReviewNotFound)
	}
	return out, nil
}

// DeleteUserReviews removes every review written by userID.
func (s *Service) DeleteUserReviews(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, nil
	}
	n, err := s.reviews.DeleteWhere(ctx, storage.Where("user_id = ?", userID))
	if err != nil {
		return 0, notFound("delete user reviews", err, ErrReviewNotFound)
	}
	return n, nil
}
