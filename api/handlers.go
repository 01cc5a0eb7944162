package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chat-relay/domain"
	"chat-relay/services"
)

type sendMessageRequest struct {
	Type      domain.MessageType  `json:"type"`
	Content   string              `json:"content"`
	MediaURL  string              `json:"mediaUrl"`
	MediaType string              `json:"mediaType"`
	FileName  string              `json:"fileName"`
	FileSize  int64               `json:"fileSize"`
	Location  *domain.Location    `json:"location"`
	Contact   *domain.ContactCard `json:"contact"`
	ReplyTo   string              `json:"replyTo"`
	Mentions  []string            `json:"mentions"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	msg, err := s.messages.Send(r.Context(), services.SendMessageCommand{
		ChatID:    mux.Vars(r)["id"],
		SenderID:  actor(r),
		Type:      body.Type,
		Content:   body.Content,
		MediaURL:  body.MediaURL,
		MediaType: body.MediaType,
		FileName:  body.FileName,
		FileSize:  body.FileSize,
		Location:  body.Location,
		Contact:   body.Contact,
		ReplyTo:   body.ReplyTo,
		Mentions:  body.Mentions,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

type listMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Cursor   *string          `json:"cursor,omitempty"`
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := s.messages.ListMessages(r.Context(), mux.Vars(r)["id"], actor(r), cursor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	s.writeJSON(w, http.StatusOK, listMessagesResponse{Messages: messages, Cursor: next})
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.messages.GetMessage(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	var body editMessageRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	msg, err := s.messages.Edit(r.Context(), mux.Vars(r)["id"], body.Content, actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.messages.Delete(r.Context(), mux.Vars(r)["id"], actor(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.messages.MarkRead(r.Context(), mux.Vars(r)["id"], actor(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markChatRead(w http.ResponseWriter, r *http.Request) {
	marked, err := s.messages.MarkChatRead(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if marked == nil {
		marked = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"marked": marked})
}

type initiateCallRequest struct {
	ReceiverID   string              `json:"receiverId"`
	Type         domain.CallType     `json:"type"`
	SDPOffer     string              `json:"sdpOffer"`
	GroupID      string              `json:"groupId"`
	Participants []string            `json:"participants"`
	Settings     domain.CallSettings `json:"callSettings"`
}

func (s *Server) initiateCall(w http.ResponseWriter, r *http.Request) {
	var body initiateCallRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	call, err := s.calls.Initiate(r.Context(), services.InitiateCallCommand{
		CallerID:     actor(r),
		ReceiverID:   body.ReceiverID,
		Type:         body.Type,
		SDPOffer:     body.SDPOffer,
		GroupID:      body.GroupID,
		Participants: body.Participants,
		Settings:     body.Settings,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, call)
}

type answerCallRequest struct {
	SDPAnswer string `json:"sdpAnswer"`
}

func (s *Server) answerCall(w http.ResponseWriter, r *http.Request) {
	var body answerCallRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	call, err := s.calls.Answer(r.Context(), mux.Vars(r)["id"], body.SDPAnswer, actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, call)
}

func (s *Server) rejectCall(w http.ResponseWriter, r *http.Request) {
	call, err := s.calls.Reject(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, call)
}

type endCallRequest struct {
	Duration int64 `json:"duration"`
}

func (s *Server) endCall(w http.ResponseWriter, r *http.Request) {
	var body endCallRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	call, err := s.calls.End(r.Context(), mux.Vars(r)["id"], body.Duration, actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, call)
}

type iceCandidateRequest struct {
	Candidate string `json:"candidate"`
}

func (s *Server) addIceCandidate(w http.ResponseWriter, r *http.Request) {
	var body iceCandidateRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.calls.AddIceCandidate(r.Context(), mux.Vars(r)["id"], body.Candidate, actor(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) callHistory(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	calls, err := s.calls.History(r.Context(), actor(r), page, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if calls == nil {
		calls = []domain.Call{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.Call{"calls": calls})
}

func (s *Server) activeCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := s.calls.Active(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if calls == nil {
		calls = []domain.Call{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.Call{"calls": calls})
}
