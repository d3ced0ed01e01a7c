package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmtech/fieldsync/internal/api"
)

var loginUsername, loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		body, _ := json.Marshal(map[string]string{
			"username": loginUsername,
			"password": loginPassword,
		})
		// Login goes straight through the client: it must never be queued,
		// and a 401 here means bad credentials, not an expired session.
		a.client.Tokens = nil
		data, err := a.client.Post(cmd.Context(), "/api/auth/login", body)
		if err != nil {
			if apiErr, ok := api.AsError(err); ok {
				return fmt.Errorf("login failed: %s", apiErr.Message)
			}
			return err
		}

		var parsed struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.Unmarshal(data, &parsed); err != nil || parsed.AccessToken == "" {
			return fmt.Errorf("login response missing tokens")
		}
		if err := a.tokens.SetTokens(parsed.AccessToken, parsed.RefreshToken); err != nil {
			return fmt.Errorf("persist tokens: %w", err)
		}
		fmt.Println("signed in")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the persisted session tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.tokens.ClearTokens()
		fmt.Println("signed out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Account username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	loginCmd.MarkFlagRequired("username")
	loginCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
