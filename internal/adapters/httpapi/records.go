package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"societycore/internal/core"
	"societycore/internal/listing"
	"societycore/pkg/domain"
)

// collection binds one tenant record type to its routes.
type collection[T domain.Scoped] struct {
	path    string
	one     string
	many    string
	create  func(context.Context, domain.Scope, T) (T, core.Result, error)
	update  func(context.Context, domain.Scope, string, func(*T) error) (T, core.Result, error)
	remove  func(context.Context, domain.Scope, string) (core.Result, error)
	get     func(context.Context, domain.Scope, string) (T, error)
	list    func(context.Context, domain.Scope) ([]T, error)
	columns listing.Columns[T]
	h       *handler
}

func (h *handler) mountRecords(r *mux.Router) {
	s := h.Core
	mount(r, collection[domain.Unit]{
		path: "/units", one: "unit", many: "units",
		create: s.CreateUnit, update: s.UpdateUnit, remove: s.DeleteUnit, get: s.GetUnit, list: s.ListUnits,
		columns: listing.Units, h: h,
	})
	mount(r, collection[domain.HouseholdMember]{
		path: "/household-members", one: "household_member", many: "household_members",
		create: s.CreateHouseholdMember, update: s.UpdateHouseholdMember, remove: s.DeleteHouseholdMember,
		get: s.GetHouseholdMember, list: s.ListHouseholdMembers,
		columns: listing.HouseholdMembers, h: h,
	})
	mount(r, collection[domain.Announcement]{
		path: "/announcements", one: "announcement", many: "announcements",
		create: s.CreateAnnouncement, update: s.UpdateAnnouncement, remove: s.DeleteAnnouncement,
		get: s.GetAnnouncement, list: s.ListAnnouncements,
		columns: listing.Announcements, h: h,
	})
	mount(r, collection[domain.Ticket]{
		path: "/tickets", one: "ticket", many: "tickets",
		create: s.CreateTicket, update: s.UpdateTicket, remove: s.DeleteTicket, get: s.GetTicket, list: s.ListTickets,
		columns: listing.Tickets, h: h,
	})
	mount(r, collection[domain.Event]{
		path: "/events", one: "event", many: "events",
		create: s.CreateEvent, update: s.UpdateEvent, remove: s.DeleteEvent, get: s.GetEvent, list: s.ListEvents,
		columns: listing.Events, h: h,
	})
	mount(r, collection[domain.Amenity]{
		path: "/amenities", one: "amenity", many: "amenities",
		create: s.CreateAmenity, update: s.UpdateAmenity, remove: s.DeleteAmenity, get: s.GetAmenity, list: s.ListAmenities,
		columns: listing.Amenities, h: h,
	})
	mount(r, collection[domain.ForumPost]{
		path: "/forum/posts", one: "post", many: "posts",
		create: s.CreateForumPost, update: s.UpdateForumPost, remove: s.DeleteForumPost, get: s.GetForumPost, list: s.ListForumPosts,
		columns: listing.ForumPosts, h: h,
	})
	mount(r, collection[domain.Asset]{
		path: "/assets", one: "asset", many: "assets",
		create: s.CreateAsset, update: s.UpdateAsset, remove: s.DeleteAsset, get: s.GetAsset, list: s.ListAssets,
		columns: listing.Assets, h: h,
	})
	mount(r, collection[domain.ParkingSlot]{
		path: "/parking-slots", one: "parking_slot", many: "parking_slots",
		create: s.CreateParkingSlot, update: s.UpdateParkingSlot, remove: s.DeleteParkingSlot,
		get: s.GetParkingSlot, list: s.ListParkingSlots,
		columns: listing.ParkingSlots, h: h,
	})
}

func mount[T domain.Scoped](r *mux.Router, c collection[T]) {
	r.HandleFunc(c.path, c.handleList).Methods(http.MethodGet)
	r.HandleFunc(c.path, c.handleCreate).Methods(http.MethodPost)
	r.HandleFunc(c.path+"/{id}", c.handleGet).Methods(http.MethodGet)
	r.HandleFunc(c.path+"/{id}", c.handleUpdate).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc(c.path+"/{id}", c.handleDelete).Methods(http.MethodDelete)
}

func (c collection[T]) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := c.list(r.Context(), principalFrom(r).Scope())
	if err == nil {
		rows, err = c.columns.Apply(rows, listingQuery(r))
	}
	if err != nil {
		c.h.writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{c.many: rows})
}

func (c collection[T]) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rec T
	if !decodeJSON(w, r, &rec) {
		return
	}
	created, res, err := c.create(r.Context(), principalFrom(r).Scope(), rec)
	if err != nil {
		c.h.writeServiceError(w, err)
		return
	}
	writeRecord(w, http.StatusCreated, c.one, created, res)
}

func (c collection[T]) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := c.get(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"])
	if err != nil {
		c.h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{c.one: rec})
}

// handleUpdate overlays the request body onto the stored record, so omitted
// fields keep their values.
func (c collection[T]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	updated, res, err := c.update(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"], func(rec *T) error {
		if err := json.Unmarshal(body, rec); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
		}
		return nil
	})
	if err != nil {
		c.h.writeServiceError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, c.one, updated, res)
}

func (c collection[T]) handleDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := c.remove(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"]); err != nil {
		c.h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func listingQuery(r *http.Request) listing.Query {
	return listing.ParseQuery(r.URL.Query())
}

// writeRecord adds non-blocking rule violations to the payload as warnings.
func writeRecord(w http.ResponseWriter, status int, key string, rec any, res core.Result) {
	payload := map[string]any{key: rec}
	if len(res.Violations) > 0 {
		payload["warnings"] = res.Violations
	}
	writeJSON(w, status, payload)
}
