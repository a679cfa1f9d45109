package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Email       string
	Password    string
	Seed        uint64
	Client      *http.Client
}

type Result struct {
	TotalRequests int
	Failures      int
	ByStatusClass map[string]int
	ByEndpoint    map[string]int
	Elapsed       time.Duration
}

// Details renders the result as report lines.
func (r Result) Details() []string {
	lines := []string{fmt.Sprintf("requests=%d failures=%d elapsed=%s", r.TotalRequests, r.Failures, r.Elapsed.Round(time.Millisecond))}
	for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "other"} {
		if n := r.ByStatusClass[class]; n > 0 {
			lines = append(lines, fmt.Sprintf("status %s=%d", class, n))
		}
	}
	for _, ep := range []string{"login", "refresh", "sessions"} {
		if n := r.ByEndpoint[ep]; n > 0 {
			lines = append(lines, fmt.Sprintf("endpoint %s=%d", ep, n))
		}
	}
	return lines
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type envelope struct {
	Data tokenPair `json:"data"`
}

// worker keeps its own token pair so refresh traffic follows a real
// rotation chain instead of replaying one token.
type worker struct {
	cfg    Config
	client *http.Client
	tokens tokenPair
}

// Run drives auth traffic at the configured rate until the duration
// elapses or ctx is cancelled. Only transport errors and 5xx responses
// count as failures; 401/423/429 are expected outcomes under load.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg.Profile = normalizeProfile(cfg.Profile)
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return Result{}, errors.New("base url is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return Result{}, errors.New("email and password are required")
	}
	switch cfg.Profile {
	case "auth", "refresh", "mixed":
	default:
		return Result{}, fmt.Errorf("unknown profile %q", cfg.Profile)
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	res := Result{ByStatusClass: map[string]int{}, ByEndpoint: map[string]int{}}
	var mu sync.Mutex
	record := func(endpoint string, status int, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.TotalRequests++
		res.ByEndpoint[endpoint]++
		if err != nil {
			res.Failures++
			res.ByStatusClass["other"]++
			return
		}
		class := classifyStatusClass(status)
		res.ByStatusClass[class]++
		if class == "5xx" {
			res.Failures++
		}
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		w := &worker{cfg: cfg, client: client}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				status, err := w.do(ctx, endpoint)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				record(endpoint, status, err)
			}
		}()
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	start := time.Now()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			select {
			case jobs <- pickEndpoint(cfg.Profile, rng):
			case <-ctx.Done():
				break loop
			}
		}
	}
	close(jobs)
	wg.Wait()
	res.Elapsed = time.Since(start)
	return res, nil
}

func pickEndpoint(profile string, rng *rand.Rand) string {
	switch profile {
	case "auth":
		return "login"
	case "refresh":
		return "refresh"
	}
	switch n := rng.IntN(10); {
	case n < 3:
		return "login"
	case n < 8:
		return "refresh"
	default:
		return "sessions"
	}
}

func (w *worker) do(ctx context.Context, endpoint string) (int, error) {
	if endpoint != "login" && w.tokens.AccessToken == "" {
		if status, err := w.login(ctx); err != nil || status != http.StatusOK {
			return status, err
		}
	}
	switch endpoint {
	case "login":
		return w.login(ctx)
	case "refresh":
		status, pair, err := w.send(ctx, http.MethodPost, "/api/v1/auth/refresh", w.tokens.RefreshToken, nil)
		if err == nil && status == http.StatusOK {
			w.tokens = pair
		} else if status == http.StatusUnauthorized {
			w.tokens = tokenPair{}
		}
		return status, err
	default:
		status, _, err := w.send(ctx, http.MethodGet, "/api/v1/auth/sessions", w.tokens.AccessToken, nil)
		if status == http.StatusUnauthorized {
			w.tokens = tokenPair{}
		}
		return status, err
	}
}

func (w *worker) login(ctx context.Context) (int, error) {
	body, _ := json.Marshal(map[string]string{"email": w.cfg.Email, "password": w.cfg.Password})
	status, pair, err := w.send(ctx, http.MethodPost, "/api/v1/auth/login", "", body)
	if err == nil && status == http.StatusOK {
		w.tokens = pair
	}
	return status, err
}

func (w *worker) send(ctx context.Context, method, path, bearer string, body []byte) (int, tokenPair, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, w.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, tokenPair{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("User-Agent", "authsvc-loadgen")
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, tokenPair{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	var env envelope
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&env)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, env.Data, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "mixed"
	}
	return p
}
