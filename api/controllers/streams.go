package controllers

import (
	"net/http"

	"github.com/kittykibble/kibble-backend/api/middleware"
	"github.com/kittykibble/kibble-backend/api/responses"
	"github.com/kittykibble/kibble-backend/internal/realtime"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
)

// OrdersStream streams change signals for the caller's orders.
func OrdersStream(streamer *realtime.Streamer, logg *logger.Logger) http.HandlerFunc {
	return userStream(streamer, realtime.TopicOrders, logg)
}

// CartStream streams the caller's cart-changed signals.
func CartStream(streamer *realtime.Streamer, logg *logger.Logger) http.HandlerFunc {
	return userStream(streamer, realtime.TopicCart, logg)
}

// AdminOrdersStream streams changes to every order.
func AdminOrdersStream(streamer *realtime.Streamer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if streamer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "realtime unavailable"))
			return
		}
		if err := streamer.Serve(w, r, realtime.Filter{Topic: realtime.TopicOrders}); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open stream"))
		}
	}
}

func userStream(streamer *realtime.Streamer, topic string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if streamer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "realtime unavailable"))
			return
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := streamer.Serve(w, r, realtime.Filter{Topic: topic, UserID: &userID}); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open stream"))
		}
	}
}
