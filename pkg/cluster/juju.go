package cluster

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/types"
)

// JujuAdapter drives one juju environment through its CLI, the only
// interface juju exposes.
type JujuAdapter struct {
	Environment      string
	ConfigFile       string
	CharmsRelease    string
	CharmsRepository string

	logger zerolog.Logger
}

// NewJujuAdapter creates an adapter for the named juju environment
func NewJujuAdapter(environment, configFile, release, repository string) *JujuAdapter {
	return &JujuAdapter{
		Environment:      environment,
		ConfigFile:       configFile,
		CharmsRelease:    release,
		CharmsRepository: repository,
		logger:           log.WithEnvironment(environment),
	}
}

func (a *JujuAdapter) run(ctx context.Context, args ...string) ([]byte, error) {
	args = append(args, "--environment", a.Environment)
	cmd := exec.CommandContext(ctx, "juju", args...)
	if a.ConfigFile != "" {
		cmd.Env = append(cmd.Environ(), "JUJU_HOME="+a.ConfigFile)
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, types.Wrap(types.ErrTransient, "juju "+strings.Join(args, " "), err)
	}
	return out, nil
}

// jujuStatus mirrors the YAML emitted by juju status.
type jujuStatus struct {
	Services map[string]struct {
		Units map[string]struct {
			AgentState    string `yaml:"agent-state"`
			Machine       string `yaml:"machine"`
			PublicAddress string `yaml:"public-address"`
		} `yaml:"units"`
	} `yaml:"services"`
}

func (a *JujuAdapter) Units(ctx context.Context, service string) (map[int]*types.Unit, error) {
	out, err := a.run(ctx, "status", service, "--format", "yaml")
	if err != nil {
		return nil, err
	}
	var status jujuStatus
	if err := yaml.Unmarshal(out, &status); err != nil {
		return nil, types.Wrap(types.ErrTransient, "parse juju status", err)
	}

	units := map[int]*types.Unit{}
	svc, ok := status.Services[service]
	if !ok {
		return units, nil
	}
	for name, u := range svc.Units {
		number := unitNumber(name)
		if number < 0 {
			continue
		}
		units[number] = &types.Unit{
			Number:  number,
			Service: service,
			State:   unitState(u.AgentState),
			Machine: u.Machine,
			Address: u.PublicAddress,
		}
	}
	return units, nil
}

func (a *JujuAdapter) EnsureNumUnits(ctx context.Context, service string, num int) error {
	units, err := a.Units(ctx, service)
	if err != nil {
		return err
	}
	current := len(units)

	switch {
	case current == 0 && num > 0:
		charm := fmt.Sprintf("local:%s/%s", a.CharmsRelease, service)
		_, err = a.run(ctx, "deploy", "--repository", a.CharmsRepository,
			"--num-units", strconv.Itoa(num), charm, service)
		if err != nil {
			return err
		}
	case num > current:
		_, err = a.run(ctx, "add-unit", "--num-units", strconv.Itoa(num-current), service)
		if err != nil {
			return err
		}
	case num < current:
		// Remove the highest-numbered units first.
		numbers := sortedNumbersDesc(units)
		for _, n := range numbers[:current-num] {
			if err := a.DestroyUnit(ctx, service, n, true); err != nil {
				return err
			}
		}
	default:
		return nil
	}

	a.logger.Info().Str("service", service).Int("from", current).Int("to", num).Msg("service scaled")
	return nil
}

func (a *JujuAdapter) DestroyUnit(ctx context.Context, service string, number int, destroyMachine bool) error {
	name := fmt.Sprintf("%s/%d", service, number)
	var machine string
	if destroyMachine {
		units, err := a.Units(ctx, service)
		if err == nil {
			if u, ok := units[number]; ok {
				machine = u.Machine
			}
		}
	}
	if _, err := a.run(ctx, "destroy-unit", name); err != nil {
		return err
	}
	if machine != "" {
		if _, err := a.run(ctx, "terminate-machine", machine); err != nil {
			a.logger.Warn().Err(err).Str("machine", machine).Msg("machine termination failed")
		}
	}
	return nil
}

func (a *JujuAdapter) Resolved(ctx context.Context, service string, number int) error {
	_, err := a.run(ctx, "resolved", fmt.Sprintf("%s/%d", service, number))
	return err
}

func unitNumber(name string) int {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return -1
	}
	return n
}

func unitState(agentState string) types.UnitState {
	switch agentState {
	case "started":
		return types.UnitStarted
	case "pending", "installing", "allocating":
		return types.UnitPending
	case "installed":
		return types.UnitInstall
	case "error", "install-error", "start-error":
		return types.UnitError
	case "stopped", "dying", "dead":
		return types.UnitStopped
	}
	return types.UnitUnknown
}

func sortedNumbersDesc(units map[int]*types.Unit) []int {
	numbers := make([]int, 0, len(units))
	for n := range units {
		numbers = append(numbers, n)
	}
	for i := 0; i < len(numbers); i++ {
		for j := i + 1; j < len(numbers); j++ {
			if numbers[j] > numbers[i] {
				numbers[i], numbers[j] = numbers[j], numbers[i]
			}
		}
	}
	return numbers
}
