package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/erauner12/condoboard/internal/store"
	"github.com/rs/zerolog/log"
)

// seedOwner makes sure a first manager can sign in. It creates the login
// account and an owner resident profile when they are missing.
func seedOwner(ctx context.Context, st store.Store, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	if _, err := st.AccountByEmail(ctx, email); errors.Is(err, store.ErrNotFound) {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		if _, err := st.CreateAccount(ctx, email, hash); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		log.Info().Str("email", email).Msg("seeded owner account")
	} else if err != nil {
		return err
	}

	existing, err := st.List(ctx, "residents", store.Query{Eq: map[string]string{"email": email}, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	_, err = st.Insert(ctx, "residents", store.Record{
		"name":   "Building Manager",
		"email":  email,
		"role":   "owner",
		"type":   "Owner",
		"status": "ok",
	})
	if err != nil {
		return fmt.Errorf("create owner profile: %w", err)
	}
	log.Info().Str("email", email).Msg("seeded owner profile")
	return nil
}
