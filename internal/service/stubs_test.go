package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/GoldCode001/vela/internal/adapter"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/storage"
	"github.com/GoldCode001/vela/internal/types"
)

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelFatal, logging.FormatText)
}

// fakeChain is an in-memory ChainClient.
type fakeChain struct {
	chain        types.ChainID
	tokenUnits   *big.Int
	nativeWei    *big.Int
	allowance    *big.Int
	readErr      error
	approveErr   error
	sendErr      error
	receipts     map[string]*adapter.Receipt
	approveCalls int
	sentTx       [][]byte
}

func newFakeChain(chain types.ChainID) *fakeChain {
	return &fakeChain{
		chain:      chain,
		tokenUnits: big.NewInt(0),
		nativeWei:  big.NewInt(0),
		allowance:  big.NewInt(0),
		receipts:   make(map[string]*adapter.Receipt),
	}
}

func (f *fakeChain) ChainID() types.ChainID { return f.chain }

func (f *fakeChain) ValidateAddress(address string) bool {
	return len(address) == 42 && address[:2] == "0x"
}

func (f *fakeChain) TokenBalance(ctx context.Context, tokenAddress, account string) (*big.Int, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return new(big.Int).Set(f.tokenUnits), nil
}

func (f *fakeChain) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return new(big.Int).Set(f.nativeWei), nil
}

func (f *fakeChain) Allowance(ctx context.Context, tokenAddress, owner, spender string) (*big.Int, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) Approve(ctx context.Context, key *ecdsa.PrivateKey, tokenAddress, spender string, amount *big.Int) (string, error) {
	if f.approveErr != nil {
		return "", f.approveErr
	}
	f.approveCalls++
	hash := fmt.Sprintf("0xapprove%d", f.approveCalls)
	f.receipts[hash] = &adapter.Receipt{TxHash: hash, Confirmed: true, BlockNumber: 100}
	return hash, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, to string, value *big.Int, data []byte) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentTx = append(f.sentTx, data)
	hash := fmt.Sprintf("0xsend%d", len(f.sentTx))
	f.receipts[hash] = &adapter.Receipt{TxHash: hash, Confirmed: true, BlockNumber: 101}
	return hash, nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash string) (*adapter.Receipt, error) {
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, adapter.ErrReceiptNotFound
	}
	return receipt, nil
}

// fakeQuoter is an in-memory BridgeAggregator. With no canned route status
// it reports the destination delivery as forever pending.
type fakeQuoter struct {
	quote     *adapter.BridgeQuote
	err       error
	status    *adapter.RouteStatus
	statusErr error
}

func (f *fakeQuoter) Quote(ctx context.Context, req *adapter.QuoteRequest) (*adapter.BridgeQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeQuoter) TransferStatus(ctx context.Context, sourceTxHash string, source, dest types.ChainID) (*adapter.RouteStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.status == nil {
		return &adapter.RouteStatus{SourceComplete: true}, nil
	}
	return f.status, nil
}

// memTransfers is an in-memory TransferStore.
type memTransfers struct {
	mu          sync.Mutex
	transfers   map[string]*models.BridgeTransfer
	nextID      int
	createErr   error
	sourceTxErr error
}

func newMemTransfers() *memTransfers {
	return &memTransfers{transfers: make(map[string]*models.BridgeTransfer)}
}

func (m *memTransfers) Create(ctx context.Context, transfer *models.BridgeTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	transfer.ID = fmt.Sprintf("transfer-%d", m.nextID)
	copied := *transfer
	m.transfers[transfer.ID] = &copied
	return nil
}

func (m *memTransfers) UpdateStatus(ctx context.Context, id string, status types.TransferStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *memTransfers) SetSourceTx(ctx context.Context, id, txHash string, status types.TransferStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sourceTxErr != nil {
		return m.sourceTxErr
	}
	t, ok := m.transfers[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.SourceTxHash = txHash
	t.Status = status
	return nil
}

func (m *memTransfers) SetDestTx(ctx context.Context, id, txHash string, status types.TransferStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.DestTxHash = txHash
	t.Status = status
	return nil
}

func (m *memTransfers) MarkFailed(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Status = types.TransferFailed
	t.FailureReason = reason
	return nil
}

func (m *memTransfers) GetByID(ctx context.Context, id string) (*models.BridgeTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memTransfers) GetBySourceTx(ctx context.Context, txHash string) (*models.BridgeTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transfers {
		if t.SourceTxHash == txHash {
			copied := *t
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

// fakeExchange is an in-memory OrderExchange.
type fakeExchange struct {
	book      *adapter.OrderBook
	bookErr   error
	order     *adapter.OrderResult
	orderErr  error
	lastOrder *adapter.OrderRequest
}

func (f *fakeExchange) FetchOrderBook(ctx context.Context, tokenID string) (*adapter.OrderBook, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return f.book, nil
}

func (f *fakeExchange) CreateOrder(ctx context.Context, key *ecdsa.PrivateKey, order *adapter.OrderRequest) (*adapter.OrderResult, error) {
	f.lastOrder = order
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return f.order, nil
}

// memUsers is an in-memory UserStore.
type memUsers struct {
	byWallet map[string]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{byWallet: make(map[string]*models.User)}
	for _, u := range users {
		m.byWallet[u.WalletAddress] = u
	}
	return m
}

func (m *memUsers) GetByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	u, ok := m.byWallet[walletAddress]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	if u, ok := m.byWallet[walletAddress]; ok {
		return u, nil
	}
	u := &models.User{ID: fmt.Sprintf("user-%d", len(m.byWallet)+1), WalletAddress: walletAddress}
	m.byWallet[walletAddress] = u
	return u, nil
}

// memWallets is an in-memory WalletStore.
type memWallets struct {
	byUser map[string]*models.WalletLink
}

func newMemWallets() *memWallets {
	return &memWallets{byUser: make(map[string]*models.WalletLink)}
}

func (m *memWallets) GetByUser(ctx context.Context, userID string) (*models.WalletLink, error) {
	link, ok := m.byUser[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return link, nil
}

func (m *memWallets) Create(ctx context.Context, link *models.WalletLink) error {
	if _, ok := m.byUser[link.UserID]; ok {
		return nil // existing row wins
	}
	copied := *link
	m.byUser[link.UserID] = &copied
	return nil
}

// memPositions is an in-memory PositionStore.
type memPositions struct {
	positions []*models.Position
	createErr error
}

func (m *memPositions) Create(ctx context.Context, position *models.Position) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	position.ID = fmt.Sprintf("position-%d", len(m.positions)+1)
	if position.Status == "" {
		position.Status = types.PositionActive
	}
	copied := *position
	m.positions = append(m.positions, &copied)
	return position.ID, nil
}

func (m *memPositions) ListActiveByUser(ctx context.Context, userID string) ([]*models.Position, error) {
	var out []*models.Position
	for _, p := range m.positions {
		if p.UserID == userID && p.Status == types.PositionActive {
			out = append(out, p)
		}
	}
	return out, nil
}
