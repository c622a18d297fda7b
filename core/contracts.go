package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type LinkReader interface {
	Get(ctx context.Context, id string) (SocialAccountLink, error)
	FindByPlatformAccount(ctx context.Context, platform Platform, platformAccountID string) (SocialAccountLink, error)
	FindByUserPlatform(ctx context.Context, userID string, platform Platform) (SocialAccountLink, error)
	ListByUser(ctx context.Context, userID string, filter AccountFilter) ([]SocialAccountLink, error)
	ListRefreshCandidates(ctx context.Context, expiresBefore time.Time) ([]SocialAccountLink, error)
}

type LinkWriter interface {
	Create(ctx context.Context, link SocialAccountLink) (SocialAccountLink, error)
	Update(ctx context.Context, link SocialAccountLink) (SocialAccountLink, error)
	UpdateCredentials(ctx context.Context, id string, update CredentialUpdate) error
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type LinkRepository interface {
	LinkReader
	LinkWriter
}

// LinkStore is the persistence collaborator. Lookups that find nothing
// return an error matching ErrLinkNotFound.
type LinkStore interface {
	LinkRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo LinkRepository) error) error
}

type CredentialUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}

type ProfileUpdate struct {
	Username    string
	DisplayName string
	UpdatedAt   time.Time
}

// PlatformClient is the provider-neutral capability contract. Unsupported
// checks return false with a nil error.
type PlatformClient interface {
	Platform() Platform
	GetUserProfile(ctx context.Context, remoteID string) (PlatformProfile, error)
	VerifyAccountOwnership(ctx context.Context, claimedAccountID string) (bool, error)
	VerifyFollow(ctx context.Context, targetAccountID string) (bool, error)
	VerifySubscription(ctx context.Context, targetChannelID string) (bool, error)
	VerifyLike(ctx context.Context, contentID string) (bool, error)
	VerifyComment(ctx context.Context, contentID string) (bool, error)
	VerifyVideoEngagement(ctx context.Context, videoID string) (bool, error)
	Close() error
}

type AppCredentials struct {
	ClientID     string
	ClientSecret string
}

type PlatformClientFactory interface {
	NewClient(ctx context.Context, platform Platform, accessToken string, app AppCredentials) (PlatformClient, error)
	Capabilities(platform Platform) (PlatformCapabilities, bool)
}

type OAuthExchange interface {
	Refresh(ctx context.Context, platform Platform, refreshToken string, clientID string, clientSecret string) (TokenRefreshResult, error)
	Revoke(ctx context.Context, platform Platform, token string, clientID string, clientSecret string) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}
