// ABOUTME: GitHub repository tool pack: create and delete repositories.
// ABOUTME: Typed argument structs are decoded after schema validation.

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/coven-github/internal/github"
)

// RepositoryClient is the GitHub surface the tool pack needs.
type RepositoryClient interface {
	CreateRepository(ctx context.Context, params github.CreateRepositoryParams) (*github.Repository, error)
	DeleteRepository(ctx context.Context, name string) error
}

// GitHubPack builds the repository management tools backed by the given client.
func GitHubPack(client RepositoryClient) []*Tool {
	h := &githubHandlers{client: client}
	return []*Tool{
		{
			Name:        "create_github_repository",
			Description: "Create a new GitHub repository",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string","minLength":1,"description":"Name of the repository to create"},"private":{"type":"boolean","description":"Whether the repository should be private","default":false},"description":{"type":"string","description":"Description of the repository"},"auto_init":{"type":"boolean","description":"Initialize repository with README","default":true}},"required":["name"]}`),
			Handler:     h.CreateRepository,
		},
		{
			Name:        "delete_github_repository",
			Description: "Delete a GitHub repository",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string","minLength":1,"description":"Name of the repository to delete"}},"required":["name"]}`),
			Handler:     h.DeleteRepository,
		},
	}
}

type githubHandlers struct {
	client RepositoryClient
}

type createRepositoryArgs struct {
	Name        string `json:"name"`
	Private     bool   `json:"private"`
	Description string `json:"description"`
	AutoInit    *bool  `json:"auto_init"`
}

func (h *githubHandlers) CreateRepository(ctx context.Context, input json.RawMessage) (string, error) {
	var args createRepositoryArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	// auto_init defaults to true when omitted
	autoInit := true
	if args.AutoInit != nil {
		autoInit = *args.AutoInit
	}

	repo, err := h.client.CreateRepository(ctx, github.CreateRepositoryParams{
		Name:        args.Name,
		Private:     args.Private,
		Description: args.Description,
		AutoInit:    autoInit,
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Created repository %s\nRepository URL: %s\nClone URL: %s", args.Name, repo.HTMLURL, repo.CloneURL), nil
}

type deleteRepositoryArgs struct {
	Name string `json:"name"`
}

func (h *githubHandlers) DeleteRepository(ctx context.Context, input json.RawMessage) (string, error) {
	var args deleteRepositoryArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	if err := h.client.DeleteRepository(ctx, args.Name); err != nil {
		return "", err
	}

	return fmt.Sprintf("Deleted repository %s", args.Name), nil
}
