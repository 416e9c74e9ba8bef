package learnus

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	appID     = "ednetYonsei"

	// The identity provider publishes only the RSA modulus; the exponent is fixed.
	rsaExponent = 0x10001
)

// Newer identity-provider responses embed the challenge and modulus in inline
// script instead of hidden form fields. Both wire formats are parsed explicitly.
var (
	scriptChallengeRe = regexp.MustCompile(`var ssoChallenge\s*=\s*['"]([^'"]+)['"]`)
	scriptModulusRe   = regexp.MustCompile(`rsa\.setPublic\s*\(\s*['"]([0-9a-fA-F]+)['"]`)
)

// Session is authenticated cookie state bound to one credential set. It is
// only ever produced by a fully successful Login.
type Session struct {
	identity string
	client   *http.Client
}

func (s *Session) Identity() string { return s.identity }

// NewSession wraps an already-authenticated HTTP client. Production sessions
// come from Login; this exists for callers that stub the login flow.
func NewSession(identity string, client *http.Client) *Session {
	return &Session{identity: identity, client: client}
}

// Authenticator runs the multi-step Pass-NI SSO exchange against the LMS and
// the university identity provider. It holds no state between calls and never
// retries: the first missing field aborts the whole login.
type Authenticator struct {
	baseURL string
	ssoURL  string
	timeout time.Duration
}

func NewAuthenticator(baseURL, ssoURL string, timeout time.Duration) *Authenticator {
	return &Authenticator{baseURL: baseURL, ssoURL: ssoURL, timeout: timeout}
}

// Login exchanges identity/secret for an authenticated Session.
func (a *Authenticator) Login(ctx context.Context, identity, secret string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, &AuthError{Step: StepTransport, Message: err.Error()}
	}
	client := &http.Client{Jar: jar, Timeout: a.timeout}

	// Step 0: baseline cookie state. The remote service rejects requests that
	// skip the Referer chain.
	if _, err := a.fetch(ctx, client, http.MethodGet, a.baseURL+"/", "", nil); err != nil {
		return nil, err
	}
	if _, err := a.fetch(ctx, client, http.MethodGet, a.baseURL+"/login/index.php", a.baseURL+"/", nil); err != nil {
		return nil, err
	}

	// Step 1: opaque seed token from the bridging endpoint.
	html, err := a.fetch(ctx, client, http.MethodGet, a.baseURL+"/passni/sso/spLogin2.php", a.baseURL+"/login/index.php", nil)
	if err != nil {
		return nil, err
	}
	seed, ok := inputValue(html, "S1")
	if !ok {
		return nil, &AuthError{Step: StepSeed, Message: "seed token S1 not present in spLogin2 response"}
	}

	// Step 2: exchange the seed for a one-time challenge and RSA modulus.
	form := url.Values{
		"app_id":     {appID},
		"retUrl":     {a.baseURL},
		"failUrl":    {a.baseURL},
		"baseUrl":    {a.baseURL},
		"S1":         {seed},
		"ssoGubun":   {""},
		"refererUrl": {""},
	}
	html, err = a.fetch(ctx, client, http.MethodPost, a.ssoURL+"/sso/PmSSOService", a.baseURL+"/passni/sso/spLogin2.php", form)
	if err != nil {
		return nil, err
	}
	challenge, modulus, err := parseChallenge(html)
	if err != nil {
		return nil, err
	}

	// Step 3: encrypt the credential envelope with the supplied public key.
	ciphertext, err := encryptCredentials(identity, secret, challenge, modulus)
	if err != nil {
		return nil, &AuthError{Step: StepChallenge, Message: err.Error()}
	}

	// Step 4: submit ciphertext plus the hidden fields carried from the
	// challenge response; the provider answers with four exchange values.
	fields, ok := hiddenFormFields(html, "/sso/PmSSOAuthService")
	if !ok {
		return nil, &AuthError{Step: StepExchange, Message: "PmSSOAuthService form not present in challenge response"}
	}
	authForm := url.Values{}
	for name, value := range fields {
		authForm.Set(name, value)
	}
	authForm.Set("loginId", identity)
	authForm.Set("loginPasswd", secret)
	authForm.Set("E2", ciphertext)
	html, err = a.fetch(ctx, client, http.MethodPost, a.ssoURL+"/sso/PmSSOAuthService", a.ssoURL+"/sso/PmSSOService", authForm)
	if err != nil {
		return nil, err
	}
	exchange := map[string]string{}
	for _, name := range []string{"E3", "E4", "S2", "CLTID"} {
		value, ok := inputValue(html, name)
		if !ok {
			return nil, &AuthError{Step: StepExchange, Message: "exchange value " + name + " not present in auth response"}
		}
		exchange[name] = value
	}

	// Step 5: post the exchange values back to the LMS, then one more GET to
	// materialize the session cookies.
	finalForm := url.Values{
		"app_id":     {appID},
		"retUrl":     {a.baseURL},
		"failUrl":    {a.baseURL + "/login/index.php"},
		"baseUrl":    {a.baseURL},
		"loginUrl":   {a.baseURL + "/passni/sso/coursemosLogin.php"},
		"E3":         {exchange["E3"]},
		"E4":         {exchange["E4"]},
		"S2":         {exchange["S2"]},
		"CLTID":      {exchange["CLTID"]},
		"ssoGubun":   {"Login"},
		"refererUrl": {a.baseURL},
		"test":       {"SSOAuthLogin"},
		"username":   {identity},
		"password":   {secret},
	}
	if _, err := a.fetch(ctx, client, http.MethodPost, a.baseURL+"/passni/sso/spLoginData.php", a.ssoURL+"/", finalForm); err != nil {
		return nil, err
	}
	if _, err := a.fetch(ctx, client, http.MethodGet, a.baseURL+"/passni/spLoginProcess.php", "", nil); err != nil {
		return nil, err
	}

	return &Session{identity: identity, client: client}, nil
}

func (a *Authenticator) fetch(ctx context.Context, client *http.Client, method, rawURL, referer string, form url.Values) (string, error) {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return "", &AuthError{Step: StepTransport, Message: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &AuthError{Step: StepTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{Step: StepTransport, Message: fmt.Sprintf("%s returned status %d", rawURL, resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &AuthError{Step: StepTransport, Message: err.Error()}
	}
	html, err := doc.Html()
	if err != nil {
		return "", &AuthError{Step: StepTransport, Message: err.Error()}
	}
	return html, nil
}

// parseChallenge extracts the one-time challenge and RSA modulus. Format A
// (hidden inputs) is tried first, then format B (inline script variables).
// Guessing beyond the two known formats is deliberately not attempted.
func parseChallenge(html string) (challenge, modulus string, err error) {
	challenge, okC := inputValue(html, "ssoChallenge")
	modulus, okM := inputValue(html, "keyModulus")
	if okC && okM {
		return challenge, modulus, nil
	}

	cm := scriptChallengeRe.FindStringSubmatch(html)
	mm := scriptModulusRe.FindStringSubmatch(html)
	if cm != nil && mm != nil {
		return cm[1], mm[1], nil
	}

	return "", "", &AuthError{Step: StepChallenge, Message: "challenge/modulus not present in either known response format"}
}

// encryptCredentials PKCS#1 v1.5-encrypts the canonical credential envelope
// with the provider-supplied modulus and hex-encodes the result.
func encryptCredentials(identity, secret, challenge, modulusHex string) (string, error) {
	n, ok := new(big.Int).SetString(modulusHex, 16)
	if !ok {
		return "", fmt.Errorf("modulus is not valid hex")
	}

	envelope, err := json.Marshal(struct {
		UserID       string `json:"userid"`
		UserPW       string `json:"userpw"`
		SSOChallenge string `json:"ssoChallenge"`
	}{identity, secret, challenge})
	if err != nil {
		return "", err
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, &rsa.PublicKey{N: n, E: rsaExponent}, envelope)
	if err != nil {
		return "", fmt.Errorf("rsa encryption failed: %w", err)
	}
	return hex.EncodeToString(ciphertext), nil
}

func inputValue(html, name string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	sel := doc.Find(`input[name="` + name + `"]`).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.AttrOr("value", ""), true
}

// hiddenFormFields collects the hidden inputs of the form posting to action.
func hiddenFormFields(html, action string) (map[string]string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	form := doc.Find(`form[action="` + action + `"]`).First()
	if form.Length() == 0 {
		return nil, false
	}
	fields := map[string]string{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = s.AttrOr("value", "")
	})
	return fields, true
}
