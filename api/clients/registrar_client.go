package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// RegistrarClient is a signing HTTP client for the registrar API.
type RegistrarClient struct {
	// ServerAddr is the base URL of the registrar service.
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Now dates signed requests. Defaults to time.Now; it must track the
	// server's clock within api.MaxAuthorizationLifetime.
	Now func() time.Time

	key     *ecdsa.PrivateKey
	address interfaces.Address
}

var _ interfaces.NameRegistrar = (*RegistrarClient)(nil)

// authorizationLifetime is how long a signed request stays valid.
const authorizationLifetime = 2 * time.Minute

func NewRegistrarClient(serverAddr string, key *ecdsa.PrivateKey) *RegistrarClient {
	return &RegistrarClient{
		ServerAddr: strings.TrimSuffix(serverAddr, "/"),
		key:        key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address is the caller identity of this client.
func (c *RegistrarClient) Address() interfaces.Address {
	return c.address
}

func (c *RegistrarClient) CreateCommitment(ctx context.Context, name string, salt interfaces.Salt) (interfaces.Digest, error) {
	var resp api.CommitmentResponse
	req := api.CommitmentRequest{Name: name, Salt: salt, Address: &c.address}
	if err := c.post(ctx, "/api/v1/commitment", req, false, &resp); err != nil {
		return interfaces.Digest{}, err
	}
	return resp.Commitment, nil
}

func (c *RegistrarClient) Commit(ctx context.Context, commitment interfaces.Digest) error {
	req := api.CommitRequest{Authorization: c.authorize(api.OpCommit), Commitment: commitment}
	return c.post(ctx, "/api/v1/commit", req, true, nil)
}

func (c *RegistrarClient) Register(ctx context.Context, name string, salt interfaces.Salt, payment *big.Int) error {
	req := api.RegisterRequest{Authorization: c.authorize(api.OpRegister), Name: name, Salt: salt}
	if payment != nil {
		req.Payment = (*hexutil.Big)(payment)
	}
	return c.post(ctx, "/api/v1/register", req, true, nil)
}

func (c *RegistrarClient) RenewName(ctx context.Context, name string) error {
	req := api.NameRequest{Authorization: c.authorize(api.OpRenew), Name: name}
	return c.post(ctx, "/api/v1/renew", req, true, nil)
}

func (c *RegistrarClient) Withdraw(ctx context.Context, name string) error {
	req := api.NameRequest{Authorization: c.authorize(api.OpWithdraw), Name: name}
	return c.post(ctx, "/api/v1/withdraw", req, true, nil)
}

func (c *RegistrarClient) NameLock(ctx context.Context, name string) (*interfaces.NameLock, error) {
	var resp api.NameLockResponse
	if err := c.get(ctx, "/api/v1/names/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	lock := resp.NameLock()
	return &lock, nil
}

// Events returns registrar events with sequence number greater than since.
func (c *RegistrarClient) Events(ctx context.Context, since uint64) ([]interfaces.Event, error) {
	var resp api.EventsResponse
	if err := c.get(ctx, "/api/v1/events?since="+strconv.FormatUint(since, 10), &resp); err != nil {
		return nil, err
	}

	events := make([]interfaces.Event, 0, len(resp.Events))
	for _, msg := range resp.Events {
		events = append(events, msg.Event())
	}
	return events, nil
}

// Balance returns the escrow ledger balance of addr.
func (c *RegistrarClient) Balance(ctx context.Context, addr interfaces.Address) (*big.Int, error) {
	var resp api.AccountResponse
	if err := c.get(ctx, "/api/v1/accounts/"+addr.Hex(), &resp); err != nil {
		return nil, err
	}
	if resp.Balance == nil {
		return new(big.Int), nil
	}
	return resp.Balance.ToInt(), nil
}

// authorize returns a fresh single-use authorization for op.
func (c *RegistrarClient) authorize(op string) api.Authorization {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	var nonce [8]byte
	_, _ = rand.Read(nonce[:])

	return api.Authorization{
		Operation: op,
		Nonce:     binary.BigEndian.Uint64(nonce[:]),
		Deadline:  now().Add(authorizationLifetime).Unix(),
	}
}

func (c *RegistrarClient) post(ctx context.Context, path string, body any, sign bool, dst any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerAddr+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if sign {
		sig, err := api.SignBody(c.key, raw)
		if err != nil {
			return fmt.Errorf("could not sign request: %w", err)
		}
		req.Header.Set(api.SignatureHeader, sig)
	}

	return c.do(req, dst)
}

func (c *RegistrarClient) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerAddr+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *RegistrarClient) do(req *http.Request, dst any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach registrar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("could not parse registrar response: %w", err)
	}
	return nil
}

// decodeError turns an error response into the matching registrar error
// where one exists.
func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, api.MaxBodySize))
	if err != nil {
		return fmt.Errorf("registrar returned %d", resp.StatusCode)
	}

	var errResp api.ErrorResponse
	if json.Unmarshal(body, &errResp) != nil || errResp.Code == "" {
		return fmt.Errorf("registrar returned error %d: %s", resp.StatusCode, string(body))
	}

	if sentinel := api.ErrorFromCode(errResp.Code); sentinel != nil {
		return sentinel
	}
	return &ResponseError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
}

// ResponseError is a non-registrar failure reported by the server.
type ResponseError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("registrar returned error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// IsUnauthorized reports whether err is a rejected request signature or
// authorization.
func IsUnauthorized(err error) bool {
	if api.ErrorStatus(err) == http.StatusUnauthorized {
		return true
	}
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusUnauthorized
}
