package controllers

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"

	u "github.com/Jobsidney/FinanceFormFlows/utils"
)

// Claims : JWT claims stored on client side
type Claims struct {
	Username string `json:"username"`
	jwt.StandardClaims
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func jwtKey() []byte {
	return []byte(os.Getenv("JWT_KEY"))
}

// Login : API handler for the admin session. POST checks the configured
// operator credentials and sets the JWT cookie; GET returns the current
// session's username.
var Login = func(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		admin := GetAdmin(w, r, true)
		if admin == "" {
			return
		}
		u.Respond(w, map[string]interface{}{"username": admin}, 200)
		return
	}

	creds := &credentials{}
	if err := json.NewDecoder(r.Body).Decode(creds); err != nil {
		u.Respond(w, u.Message(false, err.Error()), 400)
		return
	}

	if creds.Username == "" ||
		creds.Username != os.Getenv("ADMIN_USER") ||
		creds.Password != os.Getenv("ADMIN_PASSWORD") {
		u.Respond(w, u.Message(false, "Invalid credentials"), 401)
		return
	}

	SetCookie(w, creds.Username)
	u.Respond(w, map[string]interface{}{"username": creds.Username}, 200)
}

// GetAdmin : helper function to get the claimed admin username from the
// JWT cookie. Returns "" (optionally writing the error status) when the
// session is missing or invalid.
var GetAdmin = func(w http.ResponseWriter, r *http.Request, throw bool) string {
	c, err := r.Cookie("token")
	if err != nil {
		if err == http.ErrNoCookie {
			if throw {
				w.WriteHeader(http.StatusUnauthorized)
			}
			return ""
		}
		if throw {
			w.WriteHeader(http.StatusBadRequest)
		}
		return ""
	}

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(c.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtKey(), nil
	})

	if err != nil || !tkn.Valid {
		if throw {
			w.WriteHeader(http.StatusUnauthorized)
		}
		return ""
	}

	return claims.Username
}

// Logout : API handler for logging out
var Logout = func(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:    "token",
		Value:   "",
		Expires: time.Unix(0, 0),
	})
	u.Respond(w, "", 204)
}

// SetCookie : helper function to set the JWT cookie
var SetCookie = func(w http.ResponseWriter, username string) {
	expirationTime := time.Now().Add(24 * time.Hour)

	claims := &Claims{
		Username: username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtKey())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:    "token",
		Value:   tokenString,
		Expires: expirationTime,
	})
}
