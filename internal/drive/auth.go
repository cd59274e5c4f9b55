// Package drive backs the library up to Google Drive. Auth implements
// the installed-app OAuth flow with a loopback redirect and keeps the
// token refreshed on disk; Client wraps the Drive v3 API for the few
// calls the sync layer needs.
package drive

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ErrNotLoggedIn is returned when no stored token exists.
var ErrNotLoggedIn = errors.New("not logged in to google drive (run: mytalk drive login)")

// Auth manages the OAuth credentials and token files.
type Auth struct {
	credentialsPath string
	tokenPath       string
	logger          *slog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewAuth creates an auth manager. credentialsPath is the OAuth client
// downloaded from the Google Cloud Console; tokenPath is where the
// user's token is cached.
func NewAuth(credentialsPath, tokenPath string, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Auth{
		credentialsPath: credentialsPath,
		tokenPath:       tokenPath,
		logger:          logger,
	}
}

// config loads the OAuth client configuration, scoped to files the app
// creates (drive.file).
func (a *Auth) config() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.credentialsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("drive credentials not found at %s (download the OAuth client JSON from the Google Cloud Console)", a.credentialsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read drive credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gdrive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("invalid drive credentials file: %w", err)
	}
	return cfg, nil
}

// LoggedIn reports whether a stored token exists.
func (a *Auth) LoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil {
		return true
	}
	tok, err := a.readToken()
	if err != nil {
		return false
	}
	a.token = tok
	return true
}

// LoginOptions controls how the authorization URL reaches the user.
type LoginOptions struct {
	// OpenBrowser launches the authorization URL. Nil for headless
	// sessions.
	OpenBrowser func(url string) error
	// OnURL receives the authorization URL for display.
	OnURL func(url string)
	// Input, when set, is scanned for a pasted redirect URL or bare
	// code, for machines whose browser runs elsewhere.
	Input io.Reader
}

// Login runs the installed-app flow: a loopback listener receives the
// redirect, the code is exchanged, and the token is written to disk.
func (a *Auth) Login(ctx context.Context, opts LoginOptions) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start redirect listener: %w", err)
	}
	defer lis.Close()

	state, err := randomState()
	if err != nil {
		return err
	}
	cfg.RedirectURL = fmt.Sprintf("http://%s/", lis.Addr())
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	results := make(chan loginResult, 2)

	srv := &http.Server{Handler: redirectHandler(state, results)}
	go srv.Serve(lis) //nolint:errcheck
	defer srv.Close()

	if opts.OnURL != nil {
		opts.OnURL(authURL)
	}
	if opts.OpenBrowser != nil {
		if err := opts.OpenBrowser(authURL); err != nil {
			a.logger.Warn("failed to open browser", "error", err)
		}
	}
	if opts.Input != nil {
		go scanForCode(opts.Input, results)
	}

	var code string
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-results:
		if res.err != nil {
			return res.err
		}
		code = res.code
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}
	if err := a.writeToken(tok); err != nil {
		return err
	}

	a.mu.Lock()
	a.token = tok
	a.mu.Unlock()
	a.logger.Info("drive login complete", "token_path", a.tokenPath)
	return nil
}

type loginResult struct {
	code string
	err  error
}

// redirectHandler validates the OAuth redirect and reports the code.
func redirectHandler(state string, results chan<- loginResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, "authorization failed", http.StatusBadRequest)
			results <- loginResult{err: fmt.Errorf("authorization denied: %s", errMsg)}
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- loginResult{err: errors.New("authorization state mismatch")}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- loginResult{err: errors.New("authorization response missing code")}
			return
		}
		fmt.Fprintln(w, "Login complete. You can close this window and return to the terminal.")
		results <- loginResult{code: code}
	})
}

// scanForCode reads pasted input until it finds a code or redirect URL.
func scanForCode(r io.Reader, results chan<- loginResult) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		results <- loginResult{code: extractCode(line)}
		return
	}
}

// extractCode accepts either a bare code or a full redirect URL.
func extractCode(line string) string {
	if u, err := url.Parse(line); err == nil {
		if code := u.Query().Get("code"); code != "" {
			return code
		}
	}
	return line
}

// Logout removes the stored token.
func (a *Auth) Logout() error {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
	if err := os.Remove(a.tokenPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// Token implements oauth2.TokenSource. Expired tokens are refreshed and
// the refreshed token persisted.
func (a *Auth) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		tok, err := a.readToken()
		if err != nil {
			return nil, ErrNotLoggedIn
		}
		a.token = tok
	}
	if a.token.Valid() {
		return a.token, nil
	}

	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	fresh, err := cfg.TokenSource(context.Background(), a.token).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	a.token = fresh
	if err := a.writeToken(fresh); err != nil {
		a.logger.Warn("failed to persist refreshed token", "error", err)
	}
	return fresh, nil
}

// Service builds a Drive API client authenticated by this token source.
// Extra options are for tests pointing at a local server.
func (a *Auth) Service(ctx context.Context, extra ...option.ClientOption) (*gdrive.Service, error) {
	if _, err := a.Token(); err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(a)}, extra...)
	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return svc, nil
}

func (a *Auth) readToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("empty token file")
	}
	return &tok, nil
}

func (a *Auth) writeToken(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
