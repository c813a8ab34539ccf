package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// WalletServiceName is the fully-qualified name of the wallet query service.
	WalletServiceName = "bingo.wallet.v1.WalletService"

	GetBalanceProcedure        = "/" + WalletServiceName + "/GetBalance"
	ListTransactionsProcedure  = "/" + WalletServiceName + "/ListTransactions"
	CheckWithdrawalProcedure   = "/" + WalletServiceName + "/CheckWithdrawal"
	RequestWithdrawalProcedure = "/" + WalletServiceName + "/RequestWithdrawal"
)

type GetBalanceRequest struct {
	AccountID string `json:"accountId"`
}

type GetBalanceResponse struct {
	Balance *Balance `json:"balance"`
}

type ListTransactionsRequest struct {
	AccountID string `json:"accountId"`
	Limit     int    `json:"limit"`
}

type ListTransactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

type WithdrawalRequest struct {
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type CheckWithdrawalResponse struct {
	Eligibility *Eligibility `json:"eligibility"`
}

type RequestWithdrawalResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// WalletApp defines what the service layer needs from the wallet application
type WalletApp interface {
	GetWallet(ctx context.Context, accountID string) (*Balance, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)
	CheckWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal) (*Eligibility, error)
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, description string) (decimal.Decimal, error)
}

// Service exposes the ledger over Connect with a JSON codec.
type Service struct {
	app WalletApp
}

// NewService creates a new wallet Connect service
func NewService(app WalletApp) *Service {
	return &Service{app: app}
}

// GetBalance returns both balances for an account
func (s *Service) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	b, err := s.app.GetWallet(ctx, req.Msg.AccountID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetBalanceResponse{Balance: b}), nil
}

// ListTransactions returns recent ledger rows
func (s *Service) ListTransactions(ctx context.Context, req *connect.Request[ListTransactionsRequest]) (*connect.Response[ListTransactionsResponse], error) {
	txs, err := s.app.ListTransactions(ctx, req.Msg.AccountID, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return connect.NewResponse(&ListTransactionsResponse{Transactions: txs}), nil
}

// CheckWithdrawal reports whether a withdrawal would be allowed
func (s *Service) CheckWithdrawal(ctx context.Context, req *connect.Request[WithdrawalRequest]) (*connect.Response[CheckWithdrawalResponse], error) {
	e, err := s.app.CheckWithdrawal(ctx, req.Msg.AccountID, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CheckWithdrawalResponse{Eligibility: e}), nil
}

// RequestWithdrawal moves winnings out of the wallet
func (s *Service) RequestWithdrawal(ctx context.Context, req *connect.Request[WithdrawalRequest]) (*connect.Response[RequestWithdrawalResponse], error) {
	bal, err := s.app.Withdraw(ctx, req.Msg.AccountID, req.Msg.Amount, req.Msg.Description)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RequestWithdrawalResponse{Balance: bal}), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAccount), errors.Is(err, ErrInvalidAmount):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrNotEligible), errors.Is(err, ErrInsufficientFunds):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// NewWalletServiceHandler builds an HTTP handler serving every wallet
// procedure. It returns the path prefix to mount it on.
func NewWalletServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(GetBalanceProcedure, connect.NewUnaryHandler(GetBalanceProcedure, svc.GetBalance, opts...))
	mux.Handle(ListTransactionsProcedure, connect.NewUnaryHandler(ListTransactionsProcedure, svc.ListTransactions, opts...))
	mux.Handle(CheckWithdrawalProcedure, connect.NewUnaryHandler(CheckWithdrawalProcedure, svc.CheckWithdrawal, opts...))
	mux.Handle(RequestWithdrawalProcedure, connect.NewUnaryHandler(RequestWithdrawalProcedure, svc.RequestWithdrawal, opts...))
	return "/" + WalletServiceName + "/", mux
}

// Client calls the wallet service over Connect.
type Client struct {
	getBalance        *connect.Client[GetBalanceRequest, GetBalanceResponse]
	listTransactions  *connect.Client[ListTransactionsRequest, ListTransactionsResponse]
	checkWithdrawal   *connect.Client[WithdrawalRequest, CheckWithdrawalResponse]
	requestWithdrawal *connect.Client[WithdrawalRequest, RequestWithdrawalResponse]
}

// NewClient creates a wallet client for the server at baseURL
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		getBalance:        connect.NewClient[GetBalanceRequest, GetBalanceResponse](httpClient, baseURL+GetBalanceProcedure, opts...),
		listTransactions:  connect.NewClient[ListTransactionsRequest, ListTransactionsResponse](httpClient, baseURL+ListTransactionsProcedure, opts...),
		checkWithdrawal:   connect.NewClient[WithdrawalRequest, CheckWithdrawalResponse](httpClient, baseURL+CheckWithdrawalProcedure, opts...),
		requestWithdrawal: connect.NewClient[WithdrawalRequest, RequestWithdrawalResponse](httpClient, baseURL+RequestWithdrawalProcedure, opts...),
	}
}

func (c *Client) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	res, err := c.getBalance.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) ListTransactions(ctx context.Context, req *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	res, err := c.listTransactions.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) CheckWithdrawal(ctx context.Context, req *WithdrawalRequest) (*CheckWithdrawalResponse, error) {
	res, err := c.checkWithdrawal.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) RequestWithdrawal(ctx context.Context, req *WithdrawalRequest) (*RequestWithdrawalResponse, error) {
	res, err := c.requestWithdrawal.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// jsonCodec lets plain Go structs travel over Connect without generated
// protobuf types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
