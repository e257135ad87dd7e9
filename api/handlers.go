package api

import (
	"net/http"
	"pick-roll/domain"

	"github.com/julienschmidt/httprouter"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordChange struct {
	Password string `json:"password"`
}

type contentRequest struct {
	Content string `json:"content"`
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body credentials
	if err := readJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.auth.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body credentials
	if err := readJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.auth.Logout(identity(r).UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body passwordChange
	if err := readJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.ChangePassword(r.Context(), identity(r).UserID, body.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := s.auth.CurrentUser(r.Context(), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var update domain.ProfileUpdate
	if err := readJSON(w, r, &update); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.auth.UpdateUser(r.Context(), identity(r).UserID, update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// updatePhoto takes the raw image as request body.
func (s *Server) updatePhoto(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body := http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	url, err := s.auth.UpdatePhoto(r.Context(), identity(r).UserID, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"photoURL": url})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	profile, err := s.users.GetProfile(r.Context(), p.ByName("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) sendPublicMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body contentRequest
	if err := readJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	claims := identity(r)
	id, err := s.publicChat.SaveMessage(r.Context(), domain.ChatMessage{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Content: body.Content,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) sendPrivateMessage(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var body contentRequest
	if err := readJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.privateChat.SendMessage(r.Context(), identity(r).UserID, p.ByName("id"), body.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writePosts(w, r)(s.posts.List(r.Context()))
}

func (s *Server) latestPosts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writePosts(w, r)(s.posts.Latest(r.Context()))
}

func (s *Server) myPosts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writePosts(w, r)(s.posts.ListByAuthor(r.Context(), identity(r).Email))
}

func (s *Server) searchPosts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writePosts(w, r)(s.posts.Search(r.Context(), r.URL.Query().Get("q")))
}

func (s *Server) writePosts(w http.ResponseWriter, r *http.Request) func([]domain.Post, error) {
	return func(posts []domain.Post, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if posts == nil {
			posts = []domain.Post{}
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body postRequest
	if err := readJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.posts.Create(r.Context(), domain.Post{Title: body.Title, Content: body.Content}, identity(r).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var body contentRequest
	if err := readJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.posts.CreateComment(r.Context(), p.ByName("id"), domain.Comment{Content: body.Content}, identity(r).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}
