// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/lido"
)

func (s *Server) mountRegistry(router *mux.Router) {
	router.HandleFunc("/operators", s.handleListOperators).Methods(http.MethodGet)
	router.HandleFunc("/operators", s.handleAddOperator).Methods(http.MethodPost)
	router.HandleFunc("/operators/{id}", s.handleGetOperator).Methods(http.MethodGet)
	router.HandleFunc("/operators/{id}/active", s.handleSetActive).Methods(http.MethodPut)
	router.HandleFunc("/operators/{id}/name", s.handleSetName).Methods(http.MethodPut)
	router.HandleFunc("/operators/{id}/reward-address", s.handleSetRewardAddress).Methods(http.MethodPut)
	router.HandleFunc("/operators/{id}/vetted-count", s.handleSetVettedCount).Methods(http.MethodPut)
	router.HandleFunc("/operators/{id}/exited-count", s.handleSetExitedCount).Methods(http.MethodPut)
	router.HandleFunc("/operators/{id}/exited-count/unsafe", s.handleUnsafeSetExitedCount).Methods(http.MethodPut)
	router.HandleFunc("/operators/{id}/stats", s.handleOperatorStats).Methods(http.MethodGet)
	router.HandleFunc("/operators/{id}/keys", s.handleGetKeysRange).Methods(http.MethodGet)
	router.HandleFunc("/operators/{id}/keys", s.handleAddKeys).Methods(http.MethodPost)
	router.HandleFunc("/operators/{id}/keys/remove", s.handleRemoveKeys).Methods(http.MethodPost)
	router.HandleFunc("/operators/{id}/keys/{index}", s.handleGetKey).Methods(http.MethodGet)
	router.HandleFunc("/registry/stats", s.handleGlobalStats).Methods(http.MethodGet)
	router.HandleFunc("/registry/nonce", s.handleNonce).Methods(http.MethodGet)
	router.HandleFunc("/registry/trim", s.handleTrim).Methods(http.MethodPost)
	router.HandleFunc("/deposits", s.handleRequestDeposits).Methods(http.MethodPost)
	router.HandleFunc("/rewards/distribute", s.handleDistributeRewards).Methods(http.MethodPost)
}

func pathID(r *http.Request) (registry.ID, error) {
	raw := mux.Vars(r)["id"]
	id, err := parseUint(raw)
	if err != nil {
		return 0, errs.NewInvalidArgument("invalid operator id: %s", raw)
	}
	return registry.ID(id), nil
}

func parseUint(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

func queryUint(r *http.Request, name string) uint64 {
	value, _ := parseUint(r.URL.Query().Get(name))
	return value
}

func decodeBody(r *http.Request, value any) error {
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		return errs.NewInvalidArgument("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	full := r.URL.Query().Get("full") == "true"
	count, err := s.registry.OperatorCount()
	if err != nil {
		writeError(w, err)
		return
	}
	operators := make([]*registry.OperatorInfo, 0, count)
	for id := registry.ID(0); uint64(id) < count; id++ {
		info, err := s.registry.GetOperator(id, full)
		if err != nil {
			writeError(w, err)
			return
		}
		operators = append(operators, info)
	}
	writeJSON(w, http.StatusOK, operators)
}

type addOperatorRequest struct {
	Caller        lido.Address `json:"caller"`
	Name          string       `json:"name"`
	RewardAddress lido.Address `json:"rewardAddress"`
}

func (s *Server) handleAddOperator(w http.ResponseWriter, r *http.Request) {
	var req addOperatorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var id registry.ID
	err := s.commit(func() (err error) {
		id, err = s.registry.AddOperator(req.Caller, req.Name, req.RewardAddress)
		return
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]registry.ID{"id": id})
}

func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	full := r.URL.Query().Get("full") != "false"
	info, err := s.registry.GetOperator(id, full)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type setActiveRequest struct {
	Caller lido.Address `json:"caller"`
	Active bool         `json:"active"`
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setActiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err = s.commit(func() error {
		if req.Active {
			return s.registry.Activate(req.Caller, id)
		}
		return s.registry.Deactivate(req.Caller, id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

type setNameRequest struct {
	Caller lido.Address `json:"caller"`
	Name   string       `json:"name"`
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setNameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.commit(func() error {
		return s.registry.SetName(req.Caller, id, req.Name)
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": req.Name})
}

type setRewardAddressRequest struct {
	Caller        lido.Address `json:"caller"`
	RewardAddress lido.Address `json:"rewardAddress"`
}

func (s *Server) handleSetRewardAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setRewardAddressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.commit(func() error {
		return s.registry.SetRewardAddress(req.Caller, id, req.RewardAddress)
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rewardAddress": req.RewardAddress.String()})
}

type setCountRequest struct {
	Caller lido.Address `json:"caller"`
	Count  uint64       `json:"count"`
}

func (s *Server) handleSetVettedCount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setCountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.commit(func() error {
		return s.registry.SetVettedCount(req.Caller, id, req.Count)
	}); err != nil {
		writeError(w, err)
		return
	}
	info, err := s.registry.GetOperator(id, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"vetted": info.Vetted})
}

func (s *Server) handleSetExitedCount(w http.ResponseWriter, r *http.Request) {
	s.setExitedCount(w, r, s.registry.UpdateExitedCount)
}

// handleUnsafeSetExitedCount serves the privileged correction path, a
// distinct route under its own role.
func (s *Server) handleUnsafeSetExitedCount(w http.ResponseWriter, r *http.Request) {
	s.setExitedCount(w, r, s.registry.UnsafeUpdateExitedCount)
}

func (s *Server) setExitedCount(w http.ResponseWriter, r *http.Request, update func(lido.Address, registry.ID, uint64) error) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setCountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.commit(func() error {
		return update(req.Caller, id, req.Count)
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"exited": req.Count})
}

func (s *Server) handleOperatorStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.registry.OperatorStats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type keysRangeResponse struct {
	Pubkeys    hexutil.Bytes `json:"pubkeys"`
	Signatures hexutil.Bytes `json:"signatures"`
	Used       []bool        `json:"used"`
}

func (s *Server) handleGetKeysRange(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	offset := queryUint(r, "offset")
	limit := queryUint(r, "limit")
	if r.URL.Query().Get("limit") == "" {
		total, err := s.registry.TotalKeyCount(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if offset < total {
			limit = total - offset
		}
	}
	pubkeys, signatures, used, err := s.registry.GetKeysRange(id, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &keysRangeResponse{
		Pubkeys:    pubkeys,
		Signatures: signatures,
		Used:       used,
	})
}

type addKeysRequest struct {
	Caller     lido.Address  `json:"caller"`
	Count      uint64        `json:"count"`
	Pubkeys    hexutil.Bytes `json:"pubkeys"`
	Signatures hexutil.Bytes `json:"signatures"`
}

func (s *Server) handleAddKeys(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req addKeysRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.commit(func() error {
		return s.registry.AddKeys(req.Caller, id, req.Count, req.Pubkeys, req.Signatures)
	}); err != nil {
		writeError(w, err)
		return
	}
	total, err := s.registry.TotalKeyCount(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"total": total})
}

type removeKeysRequest struct {
	Caller lido.Address `json:"caller"`
	From   uint64       `json:"from"`
	Count  uint64       `json:"count"`
}

func (s *Server) handleRemoveKeys(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req removeKeysRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.commit(func() error {
		return s.registry.RemoveKeys(req.Caller, id, req.From, req.Count)
	}); err != nil {
		writeError(w, err)
		return
	}
	total, err := s.registry.TotalKeyCount(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"total": total})
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := parseUint(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, errs.NewInvalidArgument("invalid key index"))
		return
	}
	key, err := s.registry.GetKey(id, index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (s *Server) handleGlobalStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.registry.GlobalStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleNonce(w http.ResponseWriter, _ *http.Request) {
	nonce, err := s.registry.ChangeNonce()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"nonce": nonce})
}

type callerRequest struct {
	Caller lido.Address `json:"caller"`
}

func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.commit(func() error {
		return s.registry.TrimUnusedKeys(req.Caller)
	}); err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.registry.GlobalStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type requestDepositsRequest struct {
	Caller lido.Address `json:"caller"`
	Count  uint64       `json:"count"`
}

type requestDepositsResponse struct {
	Allocated  uint64        `json:"allocated"`
	Pubkeys    hexutil.Bytes `json:"pubkeys"`
	Signatures hexutil.Bytes `json:"signatures"`
}

func (s *Server) handleRequestDeposits(w http.ResponseWriter, r *http.Request) {
	var req requestDepositsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var resp requestDepositsResponse
	err := s.commit(func() (err error) {
		resp.Allocated, resp.Pubkeys, resp.Signatures, err = s.registry.RequestDeposits(req.Caller, req.Count)
		return
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &resp)
}

func (s *Server) handleDistributeRewards(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var distributed string
	err := s.commit(func() error {
		amount, err := s.registry.DistributeRewards(req.Caller)
		if err != nil {
			return err
		}
		distributed = amount.String()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"distributed": distributed})
}
