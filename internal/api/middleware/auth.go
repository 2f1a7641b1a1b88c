package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/soapify-health/soapify/internal/api"
)

type contextKey string

const DoctorIDKey contextKey = "doctor_id"

type AuthValidator interface {
	ValidateAPIToken(ctx context.Context, token string) (string, error)
}

// APITokenAuth resolves the Bearer token to a doctor ID and stores it in the
// request context. Every authenticated route reads the doctor ID from here;
// there is no other tenant signal.
func APITokenAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			doctorID, err := validator.ValidateAPIToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			ctx := context.WithValue(r.Context(), DoctorIDKey, doctorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetDoctorID(ctx context.Context) string {
	doctorID, _ := ctx.Value(DoctorIDKey).(string)
	return doctorID
}
