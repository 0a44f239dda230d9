package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tagvaultapp/tagvault-server/internal/service"
)

func (s *Server) registerSubscriptionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "subscribeRepository",
		Method:        http.MethodPut,
		Path:          "/api/v1/guilds/{guildID}/subscriptions/{repositoryID}",
		Summary:       "Subscribe repository",
		Description:   "Subscribes a guild to a repository, creating or updating the priority",
		Tags:          []string{"Subscriptions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleSubscribeRepository)

	huma.Register(s.api, huma.Operation{
		OperationID:   "unsubscribeRepository",
		Method:        http.MethodDelete,
		Path:          "/api/v1/guilds/{guildID}/subscriptions/{repositoryID}",
		Summary:       "Unsubscribe repository",
		Description:   "Removes a guild's subscription to a repository",
		Tags:          []string{"Subscriptions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleUnsubscribeRepository)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSubscriptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/guilds/{guildID}/subscriptions",
		Summary:     "List subscriptions",
		Description: "Returns a guild's subscribed repositories, highest priority first",
		Tags:        []string{"Subscriptions"},
	}, s.handleListSubscriptions)
}

// === DTOs ===

// SubscribeRepositoryRequest contains the subscription payload.
type SubscribeRepositoryRequest struct {
	Priority int `json:"priority,omitempty" doc:"Collision priority, 1 to 100, defaults to 1"`
}

// SubscribeRepositoryInput contains parameters for subscribing.
type SubscribeRepositoryInput struct {
	GuildID      string `path:"guildID" doc:"Guild ID"`
	RepositoryID string `path:"repositoryID" doc:"Repository ID"`
	Body         SubscribeRepositoryRequest
}

// UnsubscribeRepositoryInput contains parameters for unsubscribing.
type UnsubscribeRepositoryInput struct {
	GuildID      string `path:"guildID" doc:"Guild ID"`
	RepositoryID string `path:"repositoryID" doc:"Repository ID"`
}

// ListSubscriptionsInput contains parameters for listing subscriptions.
type ListSubscriptionsInput struct {
	GuildID string `path:"guildID" doc:"Guild ID"`
}

// SubscriptionResponse is one subscribed repository with its priority.
type SubscriptionResponse struct {
	Repository RepositoryResponse `json:"repository" doc:"Subscribed repository"`
	Priority   int                `json:"priority" doc:"Collision priority"`
}

// ListSubscriptionsResponse contains a guild's subscriptions.
type ListSubscriptionsResponse struct {
	Subscriptions []SubscriptionResponse `json:"subscriptions" doc:"Subscriptions, highest priority first"`
}

// ListSubscriptionsOutput wraps the subscription list for Huma.
type ListSubscriptionsOutput struct {
	Body ListSubscriptionsResponse
}

// === Handlers ===

func (s *Server) handleSubscribeRepository(ctx context.Context, input *SubscribeRepositoryInput) (*struct{}, error) {
	err := s.services.Repository.Subscribe(ctx, service.SubscribeRequest{
		GuildID:      input.GuildID,
		RepositoryID: input.RepositoryID,
		Priority:     input.Body.Priority,
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleUnsubscribeRepository(ctx context.Context, input *UnsubscribeRepositoryInput) (*struct{}, error) {
	if err := s.services.Repository.Unsubscribe(ctx, input.GuildID, input.RepositoryID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListSubscriptions(ctx context.Context, input *ListSubscriptionsInput) (*ListSubscriptionsOutput, error) {
	subs, err := s.services.Repository.Subscriptions(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	resp := make([]SubscriptionResponse, len(subs))
	for i, sub := range subs {
		repo := sub.Repository
		resp[i] = SubscriptionResponse{
			Repository: repositoryResponse(&repo),
			Priority:   sub.Priority,
		}
	}

	return &ListSubscriptionsOutput{Body: ListSubscriptionsResponse{Subscriptions: resp}}, nil
}
