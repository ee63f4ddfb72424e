package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/catalog"
	"github.com/nmezhenskyi/gastronomy-api/middleware"
)

const msgInvalidBody = "Invalid data in the request body"

// apiError is an error with a client-facing status and message.
type apiError struct {
	status  int
	message string
	details []string
}

func (e *apiError) Error() string { return e.message }

func badRequest(msg string, details ...string) error {
	return &apiError{status: http.StatusBadRequest, message: msg, details: details}
}

func notFound(msg string) error {
	return &apiError{status: http.StatusNotFound, message: msg}
}

func forbidden() error {
	return &apiError{status: http.StatusForbidden, message: "You do not have permission to access this resource"}
}

// catalogMessages are the client messages of catalog sentinels.
var catalogMessages = []struct {
	err error
	msg string
}{
	{catalog.ErrIngredientNotFound, "Ingredient not found"},
	{catalog.ErrCocktailNotFound, "Cocktail not found"},
	{catalog.ErrMealNotFound, "Meal not found"},
	{catalog.ErrReviewNotFound, "Review not found"},
	{catalog.ErrReviewExists, "Review already exists"},
	{catalog.ErrIngredientLinked, "Ingredient is already added"},
}

// classify maps err onto a status and client message. Unknown errors are 500.
func classify(err error) (status int, msg string, details []string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.message, ae.details
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, msgInvalidBody, validationDetails(verrs)
	}
	for _, m := range catalogMessages {
		if errors.Is(err, m.err) {
			if errors.Is(err, gastronomy.ErrNotFound) {
				return http.StatusNotFound, m.msg, nil
			}
			return http.StatusBadRequest, m.msg, nil
		}
	}
	switch {
	case errors.Is(err, gastronomy.ErrInvalidInput), errors.Is(err, gastronomy.ErrAccountExists):
		return http.StatusBadRequest, msgInvalidBody, []string{err.Error()}
	case errors.Is(err, gastronomy.ErrUnauthorized), errors.Is(err, gastronomy.ErrRefreshInvalid):
		return http.StatusUnauthorized, gastronomy.ErrUnauthorized.Error(), nil
	case errors.Is(err, gastronomy.ErrForbidden):
		return http.StatusForbidden, "You do not have permission to access this resource", nil
	case errors.Is(err, gastronomy.ErrInvalidCredentials), errors.Is(err, gastronomy.ErrNotFound),
		errors.Is(err, gastronomy.ErrAccountNotFound):
		return http.StatusNotFound, "Not found", nil
	case errors.Is(err, gastronomy.ErrTooManyRequests):
		return http.StatusTooManyRequests, "Too many requests, please try again later", nil
	}
	return http.StatusInternalServerError, "Internal server error", nil
}

func validationDetails(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			out = append(out, fe.Field()+" failed "+fe.Tag()+"="+fe.Param())
		} else {
			out = append(out, fe.Field()+" failed "+fe.Tag())
		}
	}
	return out
}

// fail writes err as a JSON error. Server errors are logged with the request path.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, details := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	middleware.WriteError(w, status, msg, details...)
}
