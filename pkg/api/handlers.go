package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/routing"
	"github.com/voxanet/netnode/pkg/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	doc := s.mgr.Status()
	doc["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Stats())
}

func (s *Server) handleAddNRI(w http.ResponseWriter, r *http.Request) {
	var nri types.NRI
	if !decodeJSON(w, r, &nri) {
		return
	}
	if err := s.mgr.RIStore().CreateNRI(&nri); err != nil {
		writeError(w, err)
		return
	}
	lg := log.WithNodeID(nri.NodeID)
	lg.Info().Msg("NRI registered")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"node_id": nri.NodeID,
		"version": nri.Version,
	})
}

func (s *Server) handleAddRRI(w http.ResponseWriter, r *http.Request) {
	var rri types.RRI
	if !decodeJSON(w, r, &rri) {
		return
	}
	if err := s.mgr.RIStore().CreateRRI(&rri); err != nil {
		writeError(w, err)
		return
	}
	lg := log.WithRelayID(rri.RelayID)
	lg.Info().Msg("RRI registered")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"relay_id": rri.RelayID,
		"version":  rri.Version,
	})
}

func (s *Server) handleGetLocalNRI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.LocalNRI())
}

func (s *Server) handleGetLocalRRI(w http.ResponseWriter, r *http.Request) {
	// The local relay record is derived from the node record plus the
	// advertised public key.
	nri := s.mgr.LocalNRI()
	kp := s.mgr.Keypair()
	writeJSON(w, http.StatusOK, &types.RRI{
		RelayID:   nri.NodeID,
		RelayIP:   nri.NodeIP,
		RelayPort: nri.NodePort,
		PublicKey: kp.PublicKey,
		Metadata:  map[string]string{"key_id": kp.KeyID},
	})
}

// App endpoints operate on skeleton records; scheduling happens out of
// process.

type deployAppRequest struct {
	Name     string            `json:"name"`
	Image    string            `json:"image"`
	Replicas int               `json:"replicas"`
	Labels   map[string]string `json:"labels,omitempty"`
}

func (s *Server) handleDeployApp(w http.ResponseWriter, r *http.Request) {
	var body deployAppRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	app := &types.App{
		ID:        uuid.New().String(),
		Name:      body.Name,
		Image:     body.Image,
		Replicas:  body.Replicas,
		Labels:    body.Labels,
		Status:    types.AppStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if app.Replicas == 0 {
		app.Replicas = 1
	}
	if err := app.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.mgr.ArtifactStore().CreateApp(app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"app_id": app.ID, "status": app.Status})
}

type scaleAppRequest struct {
	AppID    string `json:"app_id"`
	Replicas int    `json:"replicas"`
}

func (s *Server) handleScaleApp(w http.ResponseWriter, r *http.Request) {
	var body scaleAppRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Replicas < 0 {
		writeError(w, types.ErrValidation)
		return
	}
	app, err := s.mgr.ArtifactStore().GetApp(body.AppID)
	if err != nil {
		writeError(w, err)
		return
	}
	app.Replicas = body.Replicas
	app.UpdatedAt = time.Now().UTC()
	if err := s.mgr.ArtifactStore().UpdateApp(app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"app_id": app.ID, "replicas": app.Replicas})
}

type stopAppRequest struct {
	AppID string `json:"app_id"`
}

func (s *Server) handleStopApp(w http.ResponseWriter, r *http.Request) {
	var body stopAppRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	app, err := s.mgr.ArtifactStore().GetApp(body.AppID)
	if err != nil {
		writeError(w, err)
		return
	}
	app.Status = types.AppStatusStopped
	app.UpdatedAt = time.Now().UTC()
	if err := s.mgr.ArtifactStore().UpdateApp(app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"app_id": app.ID, "status": app.Status})
}

func (s *Server) handleAppStatus(w http.ResponseWriter, r *http.Request) {
	app, err := s.mgr.ArtifactStore().GetApp(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type requestFactoryBody struct {
	Target   string                 `json:"target"`
	Protocol string                 `json:"request_protocol"`
	Contents map[string]interface{} `json:"contents,omitempty"`
}

// handleRequestFactory builds (but does not send) a request and reports
// the resulting chain shape, exercising the factory end to end.
func (s *Server) handleRequestFactory(w http.ResponseWriter, r *http.Request) {
	var body requestFactoryBody
	if !decodeJSON(w, r, &body) {
		return
	}

	var contents routing.Contents
	if body.Contents != nil {
		c := routing.NewContentsHTTP()
		if method, ok := body.Contents["method"].(string); ok {
			c.Method = method
		}
		if payload, ok := body.Contents["body"].(string); ok {
			c.Body = payload
		}
		contents = c
	}

	req, err := routing.Factory(body.Target, body.Protocol, contents)
	if err != nil {
		writeError(w, err)
		return
	}

	relayMap, err := routing.GenerateRelayMap(s.mgr, 20, routing.ExtraListSize)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := routing.BuildChain(req, relayMap, routing.DefaultStrategy); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"target":    req.Target,
		"protocol":  req.Protocol,
		"hops":      relayMap.Len(),
		"first_hop": req.Chain.RelayID,
	})
}

type sendArtifactRequest struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

func (s *Server) handleSendArtifact(w http.ResponseWriter, r *http.Request) {
	var body sendArtifactRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeError(w, types.ErrValidation)
		return
	}
	artifact := &types.Artifact{
		ID:        uuid.New().String(),
		Name:      body.Name,
		Data:      []byte(body.Data),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.mgr.ArtifactStore().CreateArtifact(artifact); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"artifact_id": artifact.ID})
}
