package response

import (
	"context"
	"log"

	"github.com/networkbuster/aidefense/internal/docker"
	"github.com/networkbuster/aidefense/internal/models"
)

// Resource bump applied per scale_resources execution.
const (
	scaleCPUNano     = 2_000_000_000       // 2 CPUs
	scaleMemoryBytes = 2 * 1024 * 1024 * 1024 // 2 GiB
)

// ScaleResourcesAction raises the monitored container's resource limits in
// response to performance degradation. Simulate mode without Docker.
type ScaleResourcesAction struct {
	docker          *docker.Client
	targetContainer string
}

func NewScaleResourcesAction(dockerClient *docker.Client, targetContainer string) *ScaleResourcesAction {
	return &ScaleResourcesAction{
		docker:          dockerClient,
		targetContainer: targetContainer,
	}
}

func (a *ScaleResourcesAction) Name() string {
	return ActionScaleResources
}

func (a *ScaleResourcesAction) Execute(ctx context.Context, alert *models.Alert) error {
	if a.docker == nil || a.targetContainer == "" {
		log.Printf("Scale resources (simulated): alert=%s kind=%s", alert.ID, alert.Kind)
		return nil
	}

	containerID, err := a.docker.ResolveContainer(ctx, a.targetContainer)
	if err != nil {
		return err
	}

	if err := a.docker.UpdateResources(ctx, containerID, scaleCPUNano, scaleMemoryBytes); err != nil {
		return err
	}

	log.Printf("Scaled container %s resources for alert %s", a.targetContainer, alert.ID)
	return nil
}
