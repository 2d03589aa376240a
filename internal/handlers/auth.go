package handlers

import (
	"net/http"

	"github.com/accounthub/apiserver/internal/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenVerifier resolves a bearer token to the subject it was issued for.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

// RequireAuth enforces bearer authentication and injects the caller's id
// into the request context.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := auth.BearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, nameAuthorization, msgNotLoggedIn)
				return
			}

			subject, err := tokens.Subject(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, nameAuthorization, msgNotLoggedIn)
				return
			}

			userID, err := primitive.ObjectIDFromHex(subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, nameAuthorization, msgNotLoggedIn)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}
