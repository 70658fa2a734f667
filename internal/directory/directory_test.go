package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/internal/testlib"
)

func TestClient(t *testing.T) {
	groups := map[string]*Group{}
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/groups", func(w http.ResponseWriter, r *http.Request) {
		var group Group
		require.NoError(t, json.NewDecoder(r.Body).Decode(&group))
		group.ID = "g-" + group.Name
		groups[group.ID] = &group
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(group)
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/groups", func(w http.ResponseWriter, r *http.Request) {
		result := []*Group{}
		for _, group := range groups {
			if group.Name == r.URL.Query().Get("name") {
				result = append(result, group)
			}
		}
		_ = json.NewEncoder(w).Encode(result)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if _, ok := groups[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(groups, id)
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	ts := httptest.NewServer(router)
	defer ts.Close()

	c := NewClient(ts.URL, "token", testlib.MakeLogger(t))
	ctx := context.Background()

	group, err := c.GetGroupByName(ctx, "aws-123456789012-deployer")
	require.NoError(t, err)
	assert.Nil(t, group)

	created, err := c.CreateGroup(ctx, &Group{Name: "aws-123456789012-deployer", Description: "admins"})
	require.NoError(t, err)
	assert.Equal(t, "g-aws-123456789012-deployer", created.ID)

	group, err = c.GetGroupByName(ctx, "aws-123456789012-deployer")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, "admins", group.Description)

	require.NoError(t, c.DeleteGroup(ctx, created.ID))
	require.NoError(t, c.DeleteGroup(ctx, created.ID), "deleting twice is fine")
}
