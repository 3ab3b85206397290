package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformToName(t *testing.T) {
	tests := []struct {
		method, path string
		want         string
	}{
		{"GET", "/users/:id", "GetUsersById"},
		{"post", "/user-profiles/:user_id/avatar", "PostUserProfilesByUserIdAvatar"},
		{"DELETE", "/items?force=true", "DeleteItems"},
		{"GET", "/", "Get"},
		{"patch", "orders/:orderId", "PatchOrdersByOrderId"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, TransformToName(tt.method, tt.path))
		})
	}
}

func TestEntryNames(t *testing.T) {
	assert.Equal(t, "GetUsersQuery", QueryName("GetUsers"))
	assert.Equal(t, "GetUsersRequest", RequestName("GetUsers"))
	assert.Equal(t, "GetUsers404Response", ResponseName("GetUsers", 404))
}
