package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Client wraps the Docker API for container-level response actions
// (pausing a compromised workload, raising its resource limits).
type Client struct {
	cli *client.Client
}

func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &Client{cli: cli}, nil
}

func (c *Client) IsAvailable(ctx context.Context) error {
	_, err := c.cli.Ping(ctx)
	if err != nil {
		return fmt.Errorf("Docker daemon not available: %w", err)
	}
	return nil
}

// PauseContainer freezes all processes in the container. Used by
// isolate_resource to quarantine a workload without destroying forensic
// state.
func (c *Client) PauseContainer(ctx context.Context, containerID string) error {
	if err := c.cli.ContainerPause(ctx, containerID); err != nil {
		return fmt.Errorf("failed to pause container: %w", err)
	}
	return nil
}

// UnpauseContainer releases a previously paused container.
func (c *Client) UnpauseContainer(ctx context.Context, containerID string) error {
	if err := c.cli.ContainerUnpause(ctx, containerID); err != nil {
		return fmt.Errorf("failed to unpause container: %w", err)
	}
	return nil
}

// UpdateResources raises the container's CPU and memory limits. Used by
// scale_resources. Zero values leave the corresponding limit unchanged.
func (c *Client) UpdateResources(ctx context.Context, containerID string, nanoCPUs, memoryBytes int64) error {
	update := container.UpdateConfig{
		Resources: container.Resources{
			NanoCPUs: nanoCPUs,
			Memory:   memoryBytes,
		},
	}

	if _, err := c.cli.ContainerUpdate(ctx, containerID, update); err != nil {
		return fmt.Errorf("failed to update container resources: %w", err)
	}
	return nil
}

// ResolveContainer finds a container by name and returns its ID.
func (c *Client) ResolveContainer(ctx context.Context, containerName string) (string, error) {
	containers, err := c.cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return "", fmt.Errorf("failed to list containers: %w", err)
	}

	for _, cont := range containers {
		for _, name := range cont.Names {
			// Docker prefixes names with "/"
			if name == "/"+containerName || name == containerName {
				return cont.ID, nil
			}
		}
	}

	return "", fmt.Errorf("container not found: %s", containerName)
}

func (c *Client) IsContainerRunning(ctx context.Context, containerID string) (bool, error) {
	inspect, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return false, fmt.Errorf("failed to inspect container: %w", err)
	}

	return inspect.State.Running, nil
}

func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}
