package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/techtrust/backend/config"
	"github.com/techtrust/backend/internal/mq"
	"github.com/techtrust/backend/types"
)

const (
	predictPath      = "/api/v1/predict"
	predictBatchPath = "/api/v1/predict/batch"
	scorerHealthPath = "/health"
)

// DeveloperMetrics is the payload forwarded to the AI scoring service.
type DeveloperMetrics struct {
	Username          string   `json:"username"`
	TotalStars        int      `json:"total_stars"`
	TotalForks        int      `json:"total_forks"`
	TotalIssues       int      `json:"total_issues"`
	TotalPRs          int      `json:"total_prs"`
	TotalContributors int      `json:"total_contributors"`
	Languages         []string `json:"languages"`
	RepoCount         int      `json:"repo_count"`
	Credentials       []string `json:"credentials"`
}

// Prediction is the scoring service's answer. Breakdown and CredentialsInfo
// are passed through untouched; the model's output shape is not ours to own.
type Prediction struct {
	TrustScore      float64         `json:"trust_score"`
	GithubScore     float64         `json:"github_score"`
	CredentialScore float64         `json:"credential_score"`
	ConfidenceLevel string          `json:"confidence_level"`
	Breakdown       json.RawMessage `json:"breakdown,omitempty"`
	CredentialsInfo json.RawMessage `json:"credentials_info,omitempty"`
	VettingSummary  string          `json:"vetting_summary,omitempty"`
	Flags           string          `json:"flags,omitempty"`
}

// VettingRecorder persists prediction results.
type VettingRecorder interface {
	Create(ctx context.Context, result types.VettingResult) (types.VettingResult, error)
	ListByUserUID(ctx context.Context, uid string) ([]types.VettingResult, error)
}

// VettingEvent is published after each recorded prediction.
type VettingEvent struct {
	EventID string  `json:"event_id"`
	UserUID string  `json:"user_id"`
	Score   float64 `json:"score"`
}

// TrustScoreService proxies predictions to the external AI service and
// writes the results back: profile upsert, vetting-result row, and a
// broker event. The write-back is best effort; a prediction is never failed
// because persistence or publishing hiccupped.
type TrustScoreService struct {
	baseURL       string
	client        *http.Client
	healthTimeout time.Duration
	maxBatchSize  int

	accounts AccountRepository
	profiles ProfileRepository
	vetting  VettingRecorder
	events   *mq.MQ
	channel  string
}

func NewTrustScoreService(
	cfg config.TrustScoreConfig,
	accounts AccountRepository,
	profiles ProfileRepository,
	vetting VettingRecorder,
	events *mq.MQ,
	channel string,
) *TrustScoreService {
	return &TrustScoreService{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		client:        &http.Client{Timeout: cfg.Timeout},
		healthTimeout: cfg.HealthTimeout,
		maxBatchSize:  cfg.MaxBatchSize,
		accounts:      accounts,
		profiles:      profiles,
		vetting:       vetting,
		events:        events,
		channel:       channel,
	}
}

// Healthy probes the scoring service's health endpoint.
func (s *TrustScoreService) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+scorerHealthPath, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "healthy"
}

// Predict forwards one developer's metrics to the scorer. When userUID is
// non-empty the result is recorded against that account.
func (s *TrustScoreService) Predict(ctx context.Context, userUID string, metrics DeveloperMetrics, jobTitle, location string) (Prediction, error) {
	if strings.TrimSpace(metrics.Username) == "" {
		return Prediction{}, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if !s.Healthy(ctx) {
		return Prediction{}, ErrScorerUnavailable
	}
	if metrics.Languages == nil {
		metrics.Languages = []string{}
	}
	if metrics.Credentials == nil {
		metrics.Credentials = []string{}
	}

	var prediction Prediction
	if err := s.post(ctx, predictPath, metrics, &prediction); err != nil {
		return Prediction{}, err
	}

	if userUID != "" {
		s.recordPrediction(ctx, userUID, metrics, prediction, jobTitle, location)
	}
	return prediction, nil
}

// PredictBatch forwards up to maxBatchSize developer profiles at once and
// returns the scorer's response verbatim.
func (s *TrustScoreService) PredictBatch(ctx context.Context, developers []DeveloperMetrics) (json.RawMessage, error) {
	if len(developers) == 0 {
		return nil, fmt.Errorf("%w: developers array is required", ErrValidation)
	}
	if len(developers) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: maximum batch size is %d developers", ErrValidation, s.maxBatchSize)
	}
	if !s.Healthy(ctx) {
		return nil, ErrScorerUnavailable
	}
	for i := range developers {
		if developers[i].Languages == nil {
			developers[i].Languages = []string{}
		}
		if developers[i].Credentials == nil {
			developers[i].Credentials = []string{}
		}
	}

	var raw json.RawMessage
	payload := struct {
		Developers []DeveloperMetrics `json:"developers"`
	}{Developers: developers}
	if err := s.post(ctx, predictBatchPath, payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// VettedProfessional pairs a verified professional account with its profile.
type VettedProfessional struct {
	Account types.Account  `json:"account"`
	Profile *types.Profile `json:"profile,omitempty"`
}

// VettedProfessionals lists verified professional accounts joined with
// their profiles, for the recruiter dashboard.
func (s *TrustScoreService) VettedProfessionals(ctx context.Context) ([]VettedProfessional, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	var uids []string
	var pros []VettedProfessional
	for _, account := range accounts {
		if account.Verified && account.Role == types.RoleProfessional {
			pros = append(pros, VettedProfessional{Account: account})
			uids = append(uids, account.UserUID)
		}
	}
	if len(pros) == 0 {
		return nil, nil
	}

	profiles, err := s.profiles.ListByUserUIDs(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	byUID := make(map[string]types.Profile, len(profiles))
	for _, profile := range profiles {
		byUID[profile.UserUID] = profile
	}
	for i := range pros {
		if profile, ok := byUID[pros[i].Account.UserUID]; ok {
			p := profile
			pros[i].Profile = &p
		}
	}
	return pros, nil
}

// History returns an account's recorded vetting results, newest first.
func (s *TrustScoreService) History(ctx context.Context, userUID string) ([]types.VettingResult, error) {
	return s.vetting.ListByUserUID(ctx, userUID)
}

func (s *TrustScoreService) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return ErrScorerUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrScorerUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s", ErrScorerRejected, strings.TrimSpace(string(detail)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *TrustScoreService) recordPrediction(ctx context.Context, userUID string, metrics DeveloperMetrics, prediction Prediction, jobTitle, location string) {
	scoreData, err := json.Marshal(prediction)
	if err != nil {
		scoreData = nil
	}

	if _, err := s.profiles.UpsertByUserUID(ctx, types.Profile{
		UserUID:        userUID,
		TrustScore:     strconv.FormatFloat(prediction.TrustScore, 'f', -1, 64),
		TrustScoreData: string(scoreData),
		GithubUsername: metrics.Username,
		VettingSummary: prediction.VettingSummary,
		JobTitle:       jobTitle,
		Location:       location,
	}); err != nil {
		log.Printf("trustscore: saving profile for %s: %v", userUID, err)
	}

	if _, err := s.vetting.Create(ctx, types.VettingResult{
		UserUID:        userUID,
		Score:          prediction.TrustScore,
		Flags:          prediction.Flags,
		ScoreBreakdown: string(prediction.Breakdown),
		AIFeedback:     prediction.VettingSummary,
	}); err != nil {
		log.Printf("trustscore: recording vetting result for %s: %v", userUID, err)
	}

	if s.events != nil {
		event, err := json.Marshal(VettingEvent{
			EventID: uuid.NewString(),
			UserUID: userUID,
			Score:   prediction.TrustScore,
		})
		if err == nil {
			if _, err := s.events.Publish(ctx, s.channel, event, map[string]string{"user_id": userUID}); err != nil {
				log.Printf("trustscore: publishing vetting event for %s: %v", userUID, err)
			}
		}
	}
}
