package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/apperrors"
)

// HandleGetUserBoards lists the boards visible to a linked chat user
func HandleGetUserBoards(rl Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := chatUserIDParam(w, r)
		if !ok {
			return
		}

		boards, err := rl.UserBoards(r.Context(), userID)
		if err != nil {
			writeUserError(w, log, "Error fetching Trello boards.", err)
			return
		}
		writeJSON(w, http.StatusOK, boards)
	}
}

// HandleGetUserStats returns task statistics for a linked chat user
func HandleGetUserStats(rl Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := chatUserIDParam(w, r)
		if !ok {
			return
		}

		stats, err := rl.UserStats(r.Context(), userID)
		if err != nil {
			writeUserError(w, log, "Error fetching Trello tasks.", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func chatUserIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatUserID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid user id"})
		return 0, false
	}
	return id, true
}

func writeUserError(w http.ResponseWriter, log *zap.Logger, message string, err error) {
	if apperrors.IsNotLinked(err) {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Trello account not linked."})
		return
	}
	log.Error(message, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, messageResponse{Message: message})
}
