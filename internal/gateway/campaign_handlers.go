package gateway

import (
	"net/http"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	campaignservice "github.com/louisbranch/wyrmtable/internal/campaign/service"
)

func (g *Gateway) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	campaign, err := g.campaigns.CreateCampaign(r.Context(), campaignservice.CreateCampaignInput{
		Name:          body.Name,
		Description:   body.Description,
		DmUID:         caller.UID,
		DmDisplayName: caller.DisplayName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaignViewFor(campaign, caller.UID))
}

func (g *Gateway) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	campaigns, err := g.campaigns.ListCampaignsForUser(r.Context(), caller.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignViewsFor(campaigns, caller.UID))
}

func (g *Gateway) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	campaign, err := g.campaigns.GetCampaign(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignViewFor(campaign, caller.UID))
}

func (g *Gateway) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Name        *string       `json:"name"`
		Description *string       `json:"description"`
		Settings    *settingsView `json:"settings"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	input := campaignservice.UpdateCampaignInput{
		Name:        body.Name,
		Description: body.Description,
	}
	if body.Settings != nil {
		input.Settings = &campaigndomain.Settings{
			AllowPlayerInvites:         body.Settings.AllowPlayerInvites,
			DefaultCharacterVisibility: body.Settings.DefaultCharacterVisibility,
		}
	}
	campaign, err := g.campaigns.UpdateCampaign(r.Context(), caller.UID, r.PathValue("campaignID"), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignViewFor(campaign, caller.UID))
}

func (g *Gateway) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.campaigns.DeleteCampaign(r.Context(), caller.UID, r.PathValue("campaignID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleArchiveCampaign(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.campaigns.ArchiveCampaign(r.Context(), caller.UID, r.PathValue("campaignID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleRegenerateJoinCode(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	campaign, err := g.campaigns.RegenerateJoinCode(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"joinCode": campaign.JoinCode})
}

func (g *Gateway) handleAdvanceSession(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	campaign, err := g.campaigns.AdvanceSession(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignViewFor(campaign, caller.UID))
}

func (g *Gateway) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Code        string `json:"code"`
		CharacterID string `json:"characterId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	campaign, member, err := g.campaigns.JoinByCode(r.Context(), campaignservice.JoinByCodeInput{
		Code:        body.Code,
		UID:         caller.UID,
		DisplayName: caller.DisplayName,
		CharacterID: body.CharacterID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Campaign campaignView `json:"campaign"`
		Member   memberView   `json:"member"`
	}{campaignViewFor(campaign, caller.UID), memberViewOf(member)})
}

func (g *Gateway) handleLeaveCampaign(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.campaigns.LeaveCampaign(r.Context(), caller.UID, r.PathValue("campaignID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleListMembers(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	members, err := g.campaigns.ListMembers(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memberViewsOf(members))
}

func (g *Gateway) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.campaigns.RemoveMember(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("uid")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleSetCharacter(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		CharacterID string `json:"characterId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	member, err := g.campaigns.SetMemberCharacter(r.Context(), caller.UID, r.PathValue("campaignID"), body.CharacterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memberViewOf(member))
}

func (g *Gateway) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	record, err := g.campaigns.CreateInvite(r.Context(), campaignservice.CreateInviteInput{
		CampaignID: r.PathValue("campaignID"),
		ActorUID:   caller.UID,
		Email:      body.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inviteViewOf(record))
}

func (g *Gateway) handleListMyInvites(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	records, err := g.campaigns.ListMyInvites(r.Context(), caller.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]inviteView, 0, len(records))
	for _, record := range records {
		views = append(views, inviteViewOf(record))
	}
	writeJSON(w, http.StatusOK, views)
}

func (g *Gateway) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	// The body is optional; it only carries a character assignment.
	var body struct {
		CharacterID string `json:"characterId"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &body) {
		return
	}
	member, err := g.campaigns.AcceptInvite(r.Context(), campaignservice.AcceptInviteInput{
		InviteID:    r.PathValue("inviteID"),
		UID:         caller.UID,
		Email:       caller.Email,
		DisplayName: caller.DisplayName,
		CharacterID: body.CharacterID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memberViewOf(member))
}

func (g *Gateway) handleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.campaigns.DeclineInvite(r.Context(), r.PathValue("inviteID"), caller.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
