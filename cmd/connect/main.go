// Command connect walks through the full authorization flow on the command
// line: it prints the consent URL, waits for the provider's callback on a
// local listener, exchanges the code, and lists the authorized tenants.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	abacus "github.com/abacushq/abacus-go"
)

const callbackAddr = "localhost:8712"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
}

func run() error {
	displayAppname("Abacus Connect")

	client, err := abacus.NewClient(abacus.ClientConfig{
		ClientID:     os.Getenv("ABACUS_CLIENT_ID"),
		ClientSecret: os.Getenv("ABACUS_CLIENT_SECRET"),
		RedirectURIs: []string{"http://" + callbackAddr + "/callback"},
		Scopes:       []string{"openid", "email", "profile", "offline_access", "accounting.settings"},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	consentURL, err := client.BuildConsentURL(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Open the following URL in a browser and grant access:\n\n  %s\n\n", consentURL)

	callbackURL, err := waitForCallback(ctx)
	if err != nil {
		return err
	}

	if _, err := client.HandleCallback(ctx, callbackURL); err != nil {
		return err
	}
	claims, err := client.ReadIDTokenClaims()
	if err == nil {
		log.Info().Str("email", claims.Email).Msg("authenticated")
	} else {
		log.Info().Msg("authenticated (no id token)")
	}

	tenantList, err := client.UpdateTenants(ctx)
	if err != nil {
		return err
	}
	for _, tenant := range tenantList {
		fmt.Printf("%-38s %-12s %s (last active %s)\n",
			tenant.TenantID, tenant.TenantType, tenant.OrgData.Name,
			tenant.UpdatedDateUTC.Format(time.RFC3339))
	}
	return nil
}

// waitForCallback serves a single OAuth callback on the local listener and
// returns the full callback URL.
func waitForCallback(ctx context.Context) (string, error) {
	received := make(chan string, 1)
	server := &http.Server{Addr: callbackAddr}
	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Authorization received. You can close this window.")
		received <- "http://" + callbackAddr + r.URL.String()
	})

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("callback listener stopped")
		}
	}()
	defer shutdown(server)

	select {
	case callbackURL := <-received:
		return callbackURL, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Err(err).Msg("server.Shutdown")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
