package story

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/fpang/swipe-story/internal/auth"
)

const (
	klingBaseURL   = "https://api.klingai.com"
	klingPath      = "/v1/videos/image2video"
	klingTokenTTL  = 30 * time.Minute
	klingClockSkew = 5 * time.Second

	// klingMinSecret is the shortest HS256 key go-jose accepts (256 bits).
	// Kling issues 32-character secret keys.
	klingMinSecret = 32

	// Kling's business codes for throttling; everything else non-zero is
	// treated by its HTTP-family equivalent.
	klingCodeRateLimited = 1302
	klingCodeOverloaded  = 1303
)

// Kling drives Kuaishou's image-to-video API.
//
// Kling accepts either a plain API key as the bearer token or, for accounts
// issued an access/secret key pair, a short-lived HS256 JWT whose issuer is
// the access key. The JWT form is used whenever KLING_SECRET_KEY resolves.
type Kling struct {
	api   *api
	creds Credentials
	now   func() time.Time
}

// NewKling creates a Kling generator.
func NewKling(opts Options) *Kling {
	k := &Kling{api: newAPI("kling", klingBaseURL, opts), creds: opts.Credentials, now: time.Now}
	k.api.token = k.token
	return k
}

func (k *Kling) Name() string { return "kling" }

func (k *Kling) token(ctx context.Context) (string, error) {
	if k.creds == nil {
		return "", fmt.Errorf("no credentials configured for kling")
	}
	accessKey, err := k.creds.APIKey(ctx, "kling")
	if err != nil {
		return "", err
	}
	secret, err := k.creds.Secret(ctx, "kling", "secret_key")
	if auth.IsMissingKey(err) {
		return accessKey, nil
	}
	if err != nil {
		return "", err
	}
	return signKlingToken(accessKey, secret, k.now())
}

func signKlingToken(accessKey, secret string, now time.Time) (string, error) {
	if len(secret) < klingMinSecret {
		return "", fmt.Errorf("kling: %w: KLING_SECRET_KEY has %d bytes, want at least %d",
			ErrShortSecret, len(secret), klingMinSecret)
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("create kling signer: %w", err)
	}
	claims := jwt.Claims{
		Issuer:    accessKey,
		Expiry:    jwt.NewNumericDate(now.Add(klingTokenTTL)),
		NotBefore: jwt.NewNumericDate(now.Add(-klingClockSkew)),
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign kling token: %w", err)
	}
	return token, nil
}

type klingSubmit struct {
	ModelName      string  `json:"model_name"`
	Image          string  `json:"image"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	CfgScale       float64 `json:"cfg_scale"`
	Duration       string  `json:"duration"`
	Mode           string  `json:"mode"`
	AspectRatio    string  `json:"aspect_ratio"`
}

type klingEnvelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"` // submitted, processing, succeed, failed
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// err converts a non-zero business code into *APIError.
func (e *klingEnvelope) err() error {
	if e.Code == 0 {
		return nil
	}
	status := http.StatusBadRequest
	switch {
	case e.Code == klingCodeRateLimited, e.Code == klingCodeOverloaded:
		status = http.StatusTooManyRequests
	case e.Code >= 5000:
		status = http.StatusInternalServerError
	}
	return &APIError{Service: "kling", StatusCode: status, Message: fmt.Sprintf("%s (code %d)", e.Message, e.Code)}
}

func (k *Kling) Submit(ctx context.Context, req *Request) (Handle, error) {
	ref, err := req.reference()
	if err != nil {
		return Handle{}, err
	}

	image := ref.URL
	if image == "" {
		image = ref.Base64()
	}
	body := klingSubmit{
		ModelName:      "kling-v1",
		Image:          image,
		Prompt:         req.Prompt,
		NegativePrompt: "blurry, low quality, distorted",
		CfgScale:       0.5,
		Duration:       fmt.Sprint(SecondsPerPhoto),
		Mode:           "pro",
		AspectRatio:    "16:9",
	}

	var env klingEnvelope
	if err := k.api.postJSON(ctx, klingPath, body, &env); err != nil {
		return Handle{}, err
	}
	if err := env.err(); err != nil {
		return Handle{}, err
	}
	if env.Data.TaskID == "" {
		return Handle{}, fmt.Errorf("kling: response has no task_id")
	}
	return Handle{Service: k.Name(), ID: env.Data.TaskID}, nil
}

func (k *Kling) PollStatus(ctx context.Context, h Handle) (Status, error) {
	var env klingEnvelope
	if err := k.api.getJSON(ctx, klingPath+"/"+url.PathEscape(h.ID), &env); err != nil {
		return Status{}, err
	}
	if err := env.err(); err != nil {
		return Status{}, err
	}

	switch env.Data.TaskStatus {
	case "succeed":
		st := Status{Done: true, State: StateCompleted, Progress: 100}
		if v := env.Data.TaskResult.Videos; len(v) > 0 {
			st.ResultRef = v[0].URL
		}
		return st, nil
	case "failed":
		return Status{State: StateFailed, Message: env.Data.TaskStatusMsg}, nil
	case "submitted":
		return Status{State: StatePending, Progress: 10}, nil
	default:
		return Status{State: StateProcessing, Progress: 50}, nil
	}
}

func (k *Kling) Download(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	return fetch(ctx, k.api.client, k.Name(), ref)
}
