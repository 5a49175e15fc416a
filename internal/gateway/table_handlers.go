package gateway

import (
	"net/http"

	"github.com/louisbranch/wyrmtable/internal/dice"
	"github.com/louisbranch/wyrmtable/internal/note"
	noteservice "github.com/louisbranch/wyrmtable/internal/note/service"
	rollservice "github.com/louisbranch/wyrmtable/internal/roll/service"
)

func (g *Gateway) handleCreateRollRequest(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Type       string   `json:"type"`
		DC         *int     `json:"dc"`
		TargetUIDs []string `json:"targetUids"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	request, err := g.rolls.CreateRequest(r.Context(), rollservice.CreateRequestInput{
		CampaignID: r.PathValue("campaignID"),
		ActorUID:   caller.UID,
		Type:       body.Type,
		DC:         body.DC,
		TargetUIDs: body.TargetUIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rollRequestViewOf(request))
}

func (g *Gateway) handleListRollRequests(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	requests, err := g.rolls.ListRequests(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]rollRequestView, 0, len(requests))
	for _, request := range requests {
		views = append(views, rollRequestViewOf(request))
	}
	writeJSON(w, http.StatusOK, views)
}

func (g *Gateway) handleSubmitRollResponse(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Dice []struct {
			Sides    int `json:"sides"`
			Count    int `json:"count"`
			Modifier int `json:"modifier"`
		} `json:"dice"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	specs := make([]dice.Spec, 0, len(body.Dice))
	for _, spec := range body.Dice {
		specs = append(specs, dice.Spec{Sides: spec.Sides, Count: spec.Count, Modifier: spec.Modifier})
	}
	response, err := g.rolls.SubmitResponse(r.Context(), rollservice.SubmitResponseInput{
		CampaignID:  r.PathValue("campaignID"),
		RequestID:   r.PathValue("requestID"),
		UID:         caller.UID,
		DisplayName: caller.DisplayName,
		Dice:        specs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rollResponseView{
		UID:         response.UID,
		DisplayName: response.DisplayName,
		Result:      response.Result,
		Timestamp:   response.Timestamp,
	})
}

func (g *Gateway) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Tag           string   `json:"tag"`
		Title         string   `json:"title"`
		Content       string   `json:"content"`
		Tags          []string `json:"tags"`
		SessionNumber *int     `json:"sessionNumber"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	record, err := g.notes.Create(r.Context(), noteservice.CreateInput{
		CampaignID:    r.PathValue("campaignID"),
		ActorUID:      caller.UID,
		Tag:           note.Tag(body.Tag),
		Title:         body.Title,
		Content:       body.Content,
		Tags:          body.Tags,
		SessionNumber: body.SessionNumber,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, noteViewOf(record))
}

func (g *Gateway) handleListNotes(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	records, err := g.notes.List(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]noteView, 0, len(records))
	for _, record := range records {
		views = append(views, noteViewOf(record))
	}
	writeJSON(w, http.StatusOK, views)
}

func (g *Gateway) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Tag           *string   `json:"tag"`
		Title         *string   `json:"title"`
		Content       *string   `json:"content"`
		Tags          *[]string `json:"tags"`
		SessionNumber *int      `json:"sessionNumber"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	input := noteservice.UpdateInput{
		Title:         body.Title,
		Content:       body.Content,
		Tags:          body.Tags,
		SessionNumber: body.SessionNumber,
	}
	if body.Tag != nil {
		tag := note.Tag(*body.Tag)
		input.Tag = &tag
	}
	record, err := g.notes.Update(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("noteID"), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, noteViewOf(record))
}

func (g *Gateway) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.notes.Delete(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("noteID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	message, err := g.chat.SendMessage(r.Context(), r.PathValue("campaignID"), caller.UID, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageViewOf(message))
}

func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	messages, err := g.chat.ListMessages(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]messageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, messageViewOf(message))
	}
	writeJSON(w, http.StatusOK, views)
}

func (g *Gateway) handleSendWhisper(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		ToUID   string `json:"toUid"`
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	whisper, err := g.chat.SendWhisper(r.Context(), r.PathValue("campaignID"), caller.UID, body.ToUID, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, whisperViewOf(whisper))
}

func (g *Gateway) handleListWhispers(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	whispers, err := g.chat.ListWhispers(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]whisperView, 0, len(whispers))
	for _, whisper := range whispers {
		views = append(views, whisperViewOf(whisper))
	}
	writeJSON(w, http.StatusOK, views)
}
