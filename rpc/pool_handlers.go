package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"arenapool/crypto"
	"arenapool/native/pool"
)

type createParams struct {
	Caller               string `json:"caller"`
	EntryFee             string `json:"entryFee"`
	MaxParticipants      uint32 `json:"maxParticipants"`
	RegistrationDeadline int64  `json:"registrationDeadline"`
	StartTime            int64  `json:"startTime,omitempty"`
	FeePercent           uint8  `json:"feePercent"`
	NFTRewardPercent     uint8  `json:"nftRewardPercent"`
}

type signedActionParams struct {
	Caller    string `json:"caller"`
	PoolID    uint64 `json:"poolId"`
	Amount    string `json:"amount,omitempty"`
	Signature string `json:"signature"`
}

type poolActionParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Amount string `json:"amount,omitempty"`
}

type distributeParams struct {
	Caller              string   `json:"caller"`
	PoolID              uint64   `json:"poolId"`
	Recipients          []string `json:"recipients"`
	Amounts             []string `json:"amounts"`
	CollaboratorIDs     []uint64 `json:"collaboratorIds"`
	CollaboratorAmounts []string `json:"collaboratorAmounts"`
}

type reclaimParams struct {
	Caller string `json:"caller"`
	Limit  int    `json:"limit"`
}

type addressParams struct {
	Address string `json:"address"`
}

type poolIDParams struct {
	PoolID uint64 `json:"poolId"`
}

type claimableParams struct {
	PoolID  uint64 `json:"poolId"`
	Address string `json:"address"`
}

type poolJSON struct {
	ID                   uint64   `json:"id"`
	Creator              string   `json:"creator"`
	EntryFee             string   `json:"entryFee"`
	MaxParticipants      uint32   `json:"maxParticipants"`
	PrizePool            string   `json:"prizePool"`
	IncentivePool        string   `json:"incentivePool"`
	CreatedAt            int64    `json:"createdAt"`
	RegistrationDeadline int64    `json:"registrationDeadline"`
	StartTime            int64    `json:"startTime"`
	StartedAt            int64    `json:"startedAt"`
	FeePercent           uint8    `json:"feePercent"`
	NFTRewardPercent     uint8    `json:"nftRewardPercent"`
	Status               string   `json:"status"`
	Participants         []string `json:"participants"`
}

func (s *Server) handleCreate(params []json.RawMessage) (interface{}, *RPCError) {
	var p createParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	entryFee, rpcErr := decodeAmountParam(p.EntryFee, "entryFee")
	if rpcErr != nil {
		return nil, rpcErr
	}
	created, err := s.engine.CreatePool(caller, entryFee, p.MaxParticipants, p.RegistrationDeadline, p.StartTime, p.FeePercent, p.NFTRewardPercent)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return poolToJSON(created), nil
}

func (s *Server) handleRegister(params []json.RawMessage) (interface{}, *RPCError) {
	var p signedActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := decodeAmountParam(p.Amount, "amount")
	if rpcErr != nil {
		return nil, rpcErr
	}
	signature, rpcErr := decodeSignatureParam(p.Signature)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Register(caller, p.PoolID, amount, signature); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"registered": true}, nil
}

func (s *Server) handleUnregister(params []json.RawMessage) (interface{}, *RPCError) {
	var p signedActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	signature, rpcErr := decodeSignatureParam(p.Signature)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Unregister(caller, p.PoolID, signature); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"unregistered": true}, nil
}

func (s *Server) handleStart(params []json.RawMessage) (interface{}, *RPCError) {
	var p signedActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	signature, rpcErr := decodeSignatureParam(p.Signature)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Start(caller, p.PoolID, signature); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"started": true}, nil
}

func (s *Server) handleFundIncentive(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := decodeAmountParam(p.Amount, "amount")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.FundIncentive(caller, p.PoolID, amount); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"funded": true}, nil
}

func (s *Server) handleDistributeRewards(params []json.RawMessage) (interface{}, *RPCError) {
	var p distributeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipients := make([][20]byte, 0, len(p.Recipients))
	for _, raw := range p.Recipients {
		addr, rpcErr := decodeAddressParam(raw, "recipients")
		if rpcErr != nil {
			return nil, rpcErr
		}
		recipients = append(recipients, addr)
	}
	amounts, rpcErr := decodeAmountList(p.Amounts, "amounts")
	if rpcErr != nil {
		return nil, rpcErr
	}
	collabAmounts, rpcErr := decodeAmountList(p.CollaboratorAmounts, "collaboratorAmounts")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.DistributeFinalRewards(caller, p.PoolID, recipients, amounts, p.CollaboratorIDs, collabAmounts); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"settled": true}, nil
}

func (s *Server) handleCancel(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Cancel(caller, p.PoolID); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"cancelled": true}, nil
}

func (s *Server) handleClaimAbandonedRefund(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.ClaimAbandonedRefund(caller, p.PoolID); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"refunded": true}, nil
}

func (s *Server) handleClaimRefund(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolActionParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.ClaimRefund(caller, p.PoolID); err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]bool{"claimed": true}, nil
}

func (s *Server) handleReclaimStale(params []json.RawMessage) (interface{}, *RPCError) {
	var p reclaimParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	reclaimed, err := s.engine.ReclaimStale(caller, p.Limit)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]int{"reclaimed": reclaimed}, nil
}

func (s *Server) handleWithdrawFees(params []json.RawMessage) (interface{}, *RPCError) {
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddressParam(p.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.engine.WithdrawPlatformFees(caller)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]string{"withdrawn": amount.String()}, nil
}

func (s *Server) handleGetPool(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.engine.GetPool(p.PoolID)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return poolToJSON(record), nil
}

func (s *Server) handleParticipants(params []json.RawMessage) (interface{}, *RPCError) {
	var p poolIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	participants, err := s.engine.Participants(p.PoolID)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	out := make([]string, 0, len(participants))
	for _, participant := range participants {
		out = append(out, crypto.NewAddress(participant[:]).String())
	}
	return out, nil
}

func (s *Server) handleNonce(params []json.RawMessage) (interface{}, *RPCError) {
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := decodeAddressParam(p.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.engine.SignerNonce(addr)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]uint64{"nonce": nonce}, nil
}

func (s *Server) handleClaimable(params []json.RawMessage) (interface{}, *RPCError) {
	var p claimableParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := decodeAddressParam(p.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	credit, err := s.engine.ClaimableRefund(p.PoolID, addr)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]string{"claimable": credit.String()}, nil
}

func (s *Server) handlePlatformFees(params []json.RawMessage) (interface{}, *RPCError) {
	fees, err := s.engine.PlatformFees()
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]string{"accrued": fees.String()}, nil
}

func (s *Server) handlePoolCount(params []json.RawMessage) (interface{}, *RPCError) {
	count, err := s.engine.PoolCount()
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]uint64{"count": count}, nil
}

func (s *Server) handleReclaimPointer(params []json.RawMessage) (interface{}, *RPCError) {
	pointer, err := s.engine.ReclaimPointer()
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]uint64{"pointer": pointer}, nil
}

func (s *Server) handleBalance(params []json.RawMessage) (interface{}, *RPCError) {
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := decodeAddressParam(p.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.engine.Balance(addr)
	if err != nil {
		return nil, rpcErrorFor(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

// --- helpers ---

func decodeParams(params []json.RawMessage, target interface{}) *RPCError {
	if len(params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(params[0], target); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return nil
}

func decodeAddressParam(raw, field string) ([20]byte, *RPCError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("%s: %v", field, err)}
	}
	return addr.Raw(), nil
}

func decodeAmountParam(raw, field string) (*big.Int, *RPCError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || amount.Sign() < 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("%s must be a non-negative decimal string", field)}
	}
	return amount, nil
}

func decodeAmountList(raw []string, field string) ([]*big.Int, *RPCError) {
	out := make([]*big.Int, 0, len(raw))
	for _, entry := range raw {
		amount, rpcErr := decodeAmountParam(entry, field)
		if rpcErr != nil {
			return nil, rpcErr
		}
		out = append(out, amount)
	}
	return out, nil
}

func decodeSignatureParam(raw string) ([]byte, *RPCError) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	signature, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("signature: %v", err)}
	}
	return signature, nil
}

func poolToJSON(p *pool.Pool) *poolJSON {
	if p == nil {
		return nil
	}
	out := &poolJSON{
		ID:                   p.ID,
		Creator:              crypto.NewAddress(p.Creator[:]).String(),
		EntryFee:             p.EntryFee.String(),
		MaxParticipants:      p.MaxParticipants,
		PrizePool:            p.PrizePool.String(),
		IncentivePool:        p.IncentivePool.String(),
		CreatedAt:            p.CreatedAt,
		RegistrationDeadline: p.RegistrationDeadline,
		StartTime:            p.StartTime,
		StartedAt:            p.StartedAt,
		FeePercent:           p.FeePercent,
		NFTRewardPercent:     p.NFTRewardPercent,
		Status:               p.Status().String(),
		Participants:         make([]string, 0, len(p.Participants)),
	}
	for _, participant := range p.Participants {
		out.Participants = append(out.Participants, crypto.NewAddress(participant[:]).String())
	}
	return out
}

// rpcErrorFor maps engine sentinels onto the JSON-RPC error surface so every
// abort carries a specific, named reason.
func rpcErrorFor(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pool.ErrPoolNotFound):
		return &RPCError{Code: codeNotFound, Message: "not_found", Data: err.Error()}
	case errors.Is(err, pool.ErrInvalidParams),
		errors.Is(err, pool.ErrParticipantBounds),
		errors.Is(err, pool.ErrPercentOutOfRange),
		errors.Is(err, pool.ErrLengthMismatch):
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	case errors.Is(err, pool.ErrSignatureInvalid),
		errors.Is(err, pool.ErrUnauthorized),
		errors.Is(err, pool.ErrNotAdmin),
		errors.Is(err, pool.ErrNotOwner),
		errors.Is(err, pool.ErrNotCreator):
		return &RPCError{Code: codeAuth, Message: "unauthorized", Data: err.Error()}
	case errors.Is(err, pool.ErrPoolNotOpen),
		errors.Is(err, pool.ErrPoolNotStarted),
		errors.Is(err, pool.ErrPoolFinalized),
		errors.Is(err, pool.ErrPoolInactive),
		errors.Is(err, pool.ErrPoolFull),
		errors.Is(err, pool.ErrAlreadyRegistered),
		errors.Is(err, pool.ErrNotRegistered),
		errors.Is(err, pool.ErrDeadlinePassed),
		errors.Is(err, pool.ErrNotYetAbandoned),
		errors.Is(err, pool.ErrAlreadyStarted),
		errors.Is(err, pool.ErrNotEnoughParticipants):
		return &RPCError{Code: codeState, Message: "invalid_state", Data: err.Error()}
	case errors.Is(err, pool.ErrWrongEntryFee),
		errors.Is(err, pool.ErrInsufficientBalance),
		errors.Is(err, pool.ErrDistributionExceedsEscrow),
		errors.Is(err, pool.ErrNoClaimableRefund),
		errors.Is(err, pool.ErrNoPlatformFees):
		return &RPCError{Code: codeFunds, Message: "funds_error", Data: err.Error()}
	case errors.Is(err, pool.ErrTransferFailed):
		return &RPCError{Code: codeTransfer, Message: "transfer_failed", Data: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: "internal_error", Data: err.Error()}
	}
}
