package response

import (
	"context"
	"log"

	"github.com/networkbuster/aidefense/internal/docker"
	"github.com/networkbuster/aidefense/internal/models"
)

// IsolateResourceAction quarantines the monitored workload by pausing its
// container. Without a Docker client or target container it runs in
// simulate mode: the isolation is logged but nothing is touched.
type IsolateResourceAction struct {
	docker          *docker.Client
	targetContainer string
}

func NewIsolateResourceAction(dockerClient *docker.Client, targetContainer string) *IsolateResourceAction {
	return &IsolateResourceAction{
		docker:          dockerClient,
		targetContainer: targetContainer,
	}
}

func (a *IsolateResourceAction) Name() string {
	return ActionIsolateResource
}

func (a *IsolateResourceAction) Execute(ctx context.Context, alert *models.Alert) error {
	if a.docker == nil || a.targetContainer == "" {
		log.Printf("Isolate resource (simulated): alert=%s kind=%s", alert.ID, alert.Kind)
		return nil
	}

	containerID, err := a.docker.ResolveContainer(ctx, a.targetContainer)
	if err != nil {
		return err
	}

	running, err := a.docker.IsContainerRunning(ctx, containerID)
	if err != nil {
		return err
	}
	if !running {
		log.Printf("Isolate resource: container %s already stopped", a.targetContainer)
		return nil
	}

	if err := a.docker.PauseContainer(ctx, containerID); err != nil {
		return err
	}

	log.Printf("Isolated container %s for alert %s", a.targetContainer, alert.ID)
	return nil
}
