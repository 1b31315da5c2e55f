package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/xaviersharwin10/mnee-chat/internal/custody"
)

// EVM bundles what every contract client needs: the RPC endpoint for reads,
// the custody backend for signed writes, and the receipt-lookup bounds used
// to recover creation ids.
type EVM struct {
	rpc            *RPCClient
	backend        custody.Backend
	network        string
	receiptTimeout time.Duration
	pollInterval   time.Duration
}

// NewEVM builds the shared chain gateway. receiptTimeout bounds how long a
// create operation waits for its creation event before degrading to a
// pending id.
func NewEVM(rpc *RPCClient, backend custody.Backend, network string, receiptTimeout time.Duration) *EVM {
	if receiptTimeout <= 0 {
		receiptTimeout = 30 * time.Second
	}
	return &EVM{
		rpc:            rpc,
		backend:        backend,
		network:        network,
		receiptTimeout: receiptTimeout,
		pollInterval:   2 * time.Second,
	}
}

func (e *EVM) submit(ctx context.Context, from, to, data string) (string, error) {
	return e.backend.SubmitTransaction(ctx, from, to, data, e.network)
}

// creationID polls for the transaction receipt and extracts the id from the
// creation event. The wait is bounded: on timeout it reports PendingID with
// no error, because the transaction proceeds independently and cannot be
// cancelled.
func (e *EVM) creationID(ctx context.Context, txHash, contract, topic string) (int64, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.receiptTimeout)
	defer cancel()

	for {
		receipt, err := e.rpc.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == "0x0" {
				return 0, fmt.Errorf("transaction %s reverted", txHash)
			}
			for _, log := range receipt.Logs {
				if !strings.EqualFold(log.Address, contract) {
					continue
				}
				if len(log.Topics) < 2 || log.Topics[0] != topic {
					continue
				}
				return topicID(log.Topics[1])
			}
			// Mined without the expected event; nothing more will appear.
			return PendingID, nil
		}

		select {
		case <-waitCtx.Done():
			return PendingID, nil
		case <-time.After(e.pollInterval):
		}
	}
}

// EVMToken is the ERC-20 client.
type EVMToken struct {
	evm     *EVM
	address string

	mu       sync.Mutex
	decimals int32
	cached   bool
}

// NewEVMToken builds the token client for the given contract address.
func NewEVMToken(evm *EVM, address string) *EVMToken {
	return &EVMToken{evm: evm, address: address}
}

// Decimals reads the token's decimal scale, caching it after the first
// successful read (it never changes).
func (t *EVMToken) Decimals(ctx context.Context) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached {
		return t.decimals, nil
	}

	data, err := encodeCall("decimals()")
	if err != nil {
		return 0, err
	}
	ret, err := t.evm.rpc.EthCall(ctx, t.address, data)
	if err != nil {
		return 0, fmt.Errorf("read decimals: %w", err)
	}
	r := newReader(ret)
	d := int32(r.int64At(0))
	if err := r.Err(); err != nil {
		return 0, err
	}
	t.decimals = d
	t.cached = true
	return d, nil
}

// BalanceOf reads the on-ledger balance in base units.
func (t *EVMToken) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	data, err := encodeCall("balanceOf(address)", argAddress(address))
	if err != nil {
		return nil, err
	}
	ret, err := t.evm.rpc.EthCall(ctx, t.address, data)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	r := newReader(ret)
	balance := r.uint(0)
	return balance, r.Err()
}

// Transfer submits a token transfer from the custody-held sender address.
func (t *EVMToken) Transfer(ctx context.Context, from, to string, units *big.Int) (string, error) {
	data, err := encodeCall("transfer(address,uint256)", argAddress(to), argUint(units))
	if err != nil {
		return "", err
	}
	return t.evm.submit(ctx, from, t.address, data)
}

// Approve grants the spender contract an allowance from the owner.
func (t *EVMToken) Approve(ctx context.Context, owner, spender string, units *big.Int) (string, error) {
	data, err := encodeCall("approve(address,uint256)", argAddress(spender), argUint(units))
	if err != nil {
		return "", err
	}
	return t.evm.submit(ctx, owner, t.address, data)
}

// Allowance reads the remaining approval from owner to spender.
func (t *EVMToken) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	data, err := encodeCall("allowance(address,address)", argAddress(owner), argAddress(spender))
	if err != nil {
		return nil, err
	}
	ret, err := t.evm.rpc.EthCall(ctx, t.address, data)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	r := newReader(ret)
	allowance := r.uint(0)
	return allowance, r.Err()
}

// EVMRequests is the payment-request contract client.
type EVMRequests struct {
	evm          *EVM
	address      string
	createdTopic string
}

// NewEVMRequests builds the request contract client, or nil when the address
// is unset (feature disabled).
func NewEVMRequests(evm *EVM, address string) *EVMRequests {
	if address == "" {
		return nil
	}
	return &EVMRequests{
		evm:          evm,
		address:      address,
		createdTopic: eventTopic("RequestCreated(uint256,address,address,uint256,string)"),
	}
}

// Address reports the contract address (the approval spender for fulfills).
func (c *EVMRequests) Address() string { return c.address }

// Create submits createRequest and recovers the id from the RequestCreated
// event.
func (c *EVMRequests) Create(ctx context.Context, requester, payer string, units *big.Int, note string) (int64, string, error) {
	data, err := encodeCall("createRequest(address,uint256,string)", argAddress(payer), argUint(units), argString(note))
	if err != nil {
		return 0, "", err
	}
	txHash, err := c.evm.submit(ctx, requester, c.address, data)
	if err != nil {
		return 0, "", err
	}
	id, err := c.evm.creationID(ctx, txHash, c.address, c.createdTopic)
	return id, txHash, err
}

// Fulfill submits fulfillRequest from the payer.
func (c *EVMRequests) Fulfill(ctx context.Context, payer string, id int64) (string, error) {
	data, err := encodeCall("fulfillRequest(uint256)", argUint64(id))
	if err != nil {
		return "", err
	}
	return c.evm.submit(ctx, payer, c.address, data)
}

// Cancel submits cancelRequest from the requester.
func (c *EVMRequests) Cancel(ctx context.Context, requester string, id int64) (string, error) {
	data, err := encodeCall("cancelRequest(uint256)", argUint64(id))
	if err != nil {
		return "", err
	}
	return c.evm.submit(ctx, requester, c.address, data)
}

// Get reads one request projection.
func (c *EVMRequests) Get(ctx context.Context, id int64) (PaymentRequest, error) {
	data, err := encodeCall("getRequest(uint256)", argUint64(id))
	if err != nil {
		return PaymentRequest{}, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return PaymentRequest{}, fmt.Errorf("read request %d: %w", id, err)
	}
	req := decodeRequest(newReader(ret).tuple(0))
	if req.ID == 0 {
		return PaymentRequest{}, ErrNotFound
	}
	return req, nil
}

// PendingForPayer lists unfulfilled, uncancelled requests addressed to the
// payer.
func (c *EVMRequests) PendingForPayer(ctx context.Context, payer string) ([]PaymentRequest, error) {
	data, err := encodeCall("getPendingRequestsAsPayer(address)", argAddress(payer))
	if err != nil {
		return nil, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("read pending requests: %w", err)
	}
	root := newReader(ret)
	var requests []PaymentRequest
	for _, elem := range root.tupleArray(0) {
		requests = append(requests, decodeRequest(elem))
	}
	return requests, root.Err()
}

// ByRequester lists every request the requester created, newest first.
func (c *EVMRequests) ByRequester(ctx context.Context, requester string) ([]PaymentRequest, error) {
	data, err := encodeCall("getRequestsAsRequester(address)", argAddress(requester))
	if err != nil {
		return nil, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("read requester ids: %w", err)
	}
	root := newReader(ret)
	ids := root.uintArray(0)
	if err := root.Err(); err != nil {
		return nil, err
	}

	// No batched view on the contract; fetch one by one (bounded scale).
	requests := make([]PaymentRequest, 0, len(ids))
	for _, id := range ids {
		req, err := c.Get(ctx, id.Int64())
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	for i, j := 0, len(requests)-1; i < j; i, j = i+1, j-1 {
		requests[i], requests[j] = requests[j], requests[i]
	}
	return requests, nil
}

func decodeRequest(r *abiReader) PaymentRequest {
	return PaymentRequest{
		ID:        r.int64At(0),
		Requester: r.addr(1),
		Payer:     r.addr(2),
		Amount:    r.uint(3),
		Note:      r.str(4),
		Fulfilled: r.boolAt(5),
		Cancelled: r.boolAt(6),
		CreatedAt: time.Unix(r.int64At(7), 0).UTC(),
	}
}

// EVMLocks is the savings-lock contract client.
type EVMLocks struct {
	evm          *EVM
	address      string
	createdTopic string
}

// NewEVMLocks builds the lock contract client, or nil when disabled.
func NewEVMLocks(evm *EVM, address string) *EVMLocks {
	if address == "" {
		return nil
	}
	return &EVMLocks{
		evm:          evm,
		address:      address,
		createdTopic: eventTopic("LockCreated(uint256,address,uint256,uint256,string)"),
	}
}

// Address reports the contract address (the approval spender for creates).
func (c *EVMLocks) Address() string { return c.address }

// Create submits createLock and recovers the id from LockCreated.
func (c *EVMLocks) Create(ctx context.Context, owner string, units *big.Int, durationSeconds int64, note string) (int64, string, error) {
	data, err := encodeCall("createLock(uint256,uint256,string)", argUint(units), argUint64(durationSeconds), argString(note))
	if err != nil {
		return 0, "", err
	}
	txHash, err := c.evm.submit(ctx, owner, c.address, data)
	if err != nil {
		return 0, "", err
	}
	id, err := c.evm.creationID(ctx, txHash, c.address, c.createdTopic)
	return id, txHash, err
}

// Withdraw submits withdraw from the given address (owner or sponsor).
func (c *EVMLocks) Withdraw(ctx context.Context, from string, id int64) (string, error) {
	data, err := encodeCall("withdraw(uint256)", argUint64(id))
	if err != nil {
		return "", err
	}
	return c.evm.submit(ctx, from, c.address, data)
}

// Get reads one lock projection.
func (c *EVMLocks) Get(ctx context.Context, id int64) (SavingsLock, error) {
	data, err := encodeCall("getLock(uint256)", argUint64(id))
	if err != nil {
		return SavingsLock{}, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return SavingsLock{}, fmt.Errorf("read lock %d: %w", id, err)
	}
	lock := decodeLock(newReader(ret).tuple(0))
	if lock.ID == 0 {
		return SavingsLock{}, ErrNotFound
	}
	return lock, nil
}

// ActiveFor lists the owner's undrawn locks.
func (c *EVMLocks) ActiveFor(ctx context.Context, owner string) ([]SavingsLock, error) {
	data, err := encodeCall("getActiveLocks(address)", argAddress(owner))
	if err != nil {
		return nil, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("read active locks: %w", err)
	}
	root := newReader(ret)
	var locks []SavingsLock
	for _, elem := range root.tupleArray(0) {
		locks = append(locks, decodeLock(elem))
	}
	return locks, root.Err()
}

// CanWithdraw re-derives the withdrawable predicate from current ledger
// state.
func (c *EVMLocks) CanWithdraw(ctx context.Context, id int64) (bool, error) {
	data, err := encodeCall("canWithdraw(uint256)", argUint64(id))
	if err != nil {
		return false, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return false, fmt.Errorf("read canWithdraw %d: %w", id, err)
	}
	r := newReader(ret)
	ok := r.boolAt(0)
	return ok, r.Err()
}

// NextID reads the next id the contract will allocate.
func (c *EVMLocks) NextID(ctx context.Context) (int64, error) {
	data, err := encodeCall("nextLockId()")
	if err != nil {
		return 0, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return 0, fmt.Errorf("read nextLockId: %w", err)
	}
	r := newReader(ret)
	id := r.int64At(0)
	return id, r.Err()
}

func decodeLock(r *abiReader) SavingsLock {
	return SavingsLock{
		ID:         r.int64At(0),
		Owner:      r.addr(1),
		Amount:     r.uint(2),
		UnlockTime: time.Unix(r.int64At(3), 0).UTC(),
		Withdrawn:  r.boolAt(4),
		Note:       r.str(5),
	}
}

// EVMSchedules is the scheduled-payment contract client.
type EVMSchedules struct {
	evm          *EVM
	address      string
	createdTopic string
}

// NewEVMSchedules builds the schedule contract client, or nil when disabled.
func NewEVMSchedules(evm *EVM, address string) *EVMSchedules {
	if address == "" {
		return nil
	}
	return &EVMSchedules{
		evm:          evm,
		address:      address,
		createdTopic: eventTopic("ScheduleCreated(uint256,address,address,uint256,uint256,string)"),
	}
}

// Address reports the contract address (the approval spender for
// executions).
func (c *EVMSchedules) Address() string { return c.address }

// Create submits createSchedule and recovers the id from ScheduleCreated.
func (c *EVMSchedules) Create(ctx context.Context, sender, recipient string, units *big.Int, intervalSeconds, numPayments int64, note string) (int64, string, error) {
	data, err := encodeCall("createSchedule(address,uint256,uint256,uint256,string)",
		argAddress(recipient), argUint(units), argUint64(intervalSeconds), argUint64(numPayments), argString(note))
	if err != nil {
		return 0, "", err
	}
	txHash, err := c.evm.submit(ctx, sender, c.address, data)
	if err != nil {
		return 0, "", err
	}
	id, err := c.evm.creationID(ctx, txHash, c.address, c.createdTopic)
	return id, txHash, err
}

// Execute submits executePayment from the sponsor address.
func (c *EVMSchedules) Execute(ctx context.Context, from string, id int64) (string, error) {
	data, err := encodeCall("executePayment(uint256)", argUint64(id))
	if err != nil {
		return "", err
	}
	return c.evm.submit(ctx, from, c.address, data)
}

// Cancel submits cancelSchedule from the sender.
func (c *EVMSchedules) Cancel(ctx context.Context, sender string, id int64) (string, error) {
	data, err := encodeCall("cancelSchedule(uint256)", argUint64(id))
	if err != nil {
		return "", err
	}
	return c.evm.submit(ctx, sender, c.address, data)
}

// Get reads one schedule projection.
func (c *EVMSchedules) Get(ctx context.Context, id int64) (ScheduledPayment, error) {
	data, err := encodeCall("getSchedule(uint256)", argUint64(id))
	if err != nil {
		return ScheduledPayment{}, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return ScheduledPayment{}, fmt.Errorf("read schedule %d: %w", id, err)
	}
	s := decodeSchedule(newReader(ret).tuple(0))
	if s.ID == 0 {
		return ScheduledPayment{}, ErrNotFound
	}
	return s, nil
}

// ActiveBySender lists the sender's active schedules.
func (c *EVMSchedules) ActiveBySender(ctx context.Context, sender string) ([]ScheduledPayment, error) {
	data, err := encodeCall("getActiveSchedulesBySender(address)", argAddress(sender))
	if err != nil {
		return nil, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("read active schedules: %w", err)
	}
	root := newReader(ret)
	var schedules []ScheduledPayment
	for _, elem := range root.tupleArray(0) {
		schedules = append(schedules, decodeSchedule(elem))
	}
	return schedules, root.Err()
}

// IsPaymentDue re-derives the due predicate from current ledger state.
func (c *EVMSchedules) IsPaymentDue(ctx context.Context, id int64) (bool, error) {
	data, err := encodeCall("isPaymentDue(uint256)", argUint64(id))
	if err != nil {
		return false, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return false, fmt.Errorf("read isPaymentDue %d: %w", id, err)
	}
	r := newReader(ret)
	due := r.boolAt(0)
	return due, r.Err()
}

// NextID reads the next id the contract will allocate.
func (c *EVMSchedules) NextID(ctx context.Context) (int64, error) {
	data, err := encodeCall("nextScheduleId()")
	if err != nil {
		return 0, err
	}
	ret, err := c.evm.rpc.EthCall(ctx, c.address, data)
	if err != nil {
		return 0, fmt.Errorf("read nextScheduleId: %w", err)
	}
	r := newReader(ret)
	id := r.int64At(0)
	return id, r.Err()
}

func decodeSchedule(r *abiReader) ScheduledPayment {
	return ScheduledPayment{
		ID:                r.int64At(0),
		Sender:            r.addr(1),
		Recipient:         r.addr(2),
		Amount:            r.uint(3),
		IntervalSeconds:   r.int64At(4),
		NextPaymentTime:   time.Unix(r.int64At(5), 0).UTC(),
		RemainingPayments: r.int64At(6),
		Active:            r.boolAt(7),
		Note:              r.str(8),
	}
}
