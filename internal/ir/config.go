package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Config describes the target host and what gets installed on it.
type Config struct {
	ExpectedOSName    string `pkl:"expectedOsName" yaml:"expectedOsName"`
	ExpectedOSVersion string `pkl:"expectedOsVersion" yaml:"expectedOsVersion"`

	CUDAMajor       int    `pkl:"cudaMajor" yaml:"cudaMajor"`
	CUDAHome        string `pkl:"cudaHome" yaml:"cudaHome"`
	CUDADownloadURL string `pkl:"cudaDownloadUrl" yaml:"cudaDownloadUrl"`
	ShellProfile    string `pkl:"shellProfile" yaml:"shellProfile"`

	AptPackages   []string `pkl:"aptPackages" yaml:"aptPackages"`
	PythonPPA     string   `pkl:"pythonPpa" yaml:"pythonPpa"`
	PythonVersion string   `pkl:"pythonVersion" yaml:"pythonVersion"`

	ProtocVersion     string `pkl:"protocVersion" yaml:"protocVersion"`
	ProtocURLTemplate string `pkl:"protocUrlTemplate" yaml:"protocUrlTemplate"` // %[1]s version, %[2]s arch token
	ProtocPrefix      string `pkl:"protocPrefix" yaml:"protocPrefix"`

	Server        string `pkl:"server" yaml:"server"` // preset name, see UseServer
	Package       string `pkl:"package" yaml:"package"`
	TorchBackend  string `pkl:"torchBackend" yaml:"torchBackend"` // e.g. "cu128"
	TorchIndexURL string `pkl:"torchIndexUrl" yaml:"torchIndexUrl"`

	ServiceName  string `pkl:"serviceName" yaml:"serviceName"`
	ServerModule string `pkl:"serverModule" yaml:"serverModule"`
	ModelFlag    string `pkl:"modelFlag" yaml:"modelFlag"`
	UnitPath     string `pkl:"unitPath" yaml:"unitPath"`
	WorkDir      string `pkl:"workDir" yaml:"workDir"`
	ModelID      string `pkl:"modelId" yaml:"modelId"`
	ListenHost   string `pkl:"listenHost" yaml:"listenHost"`
	ListenPort   int    `pkl:"listenPort" yaml:"listenPort"`
	RestartSec   int    `pkl:"restartSec" yaml:"restartSec"`

	RecordPath         string `pkl:"recordPath" yaml:"recordPath"`
	StepTimeoutMinutes int    `pkl:"stepTimeoutMinutes" yaml:"stepTimeoutMinutes"`
}

// DefaultConfig returns the configuration for the supported target:
// Ubuntu 24.04 with a CUDA 12 toolkit, serving vLLM on port 8000.
func DefaultConfig() *Config {
	return &Config{
		ExpectedOSName:    "Ubuntu",
		ExpectedOSVersion: "24.04",

		CUDAMajor:       12,
		CUDAHome:        "/usr/local/cuda",
		CUDADownloadURL: "https://developer.nvidia.com/cuda-downloads",
		ShellProfile:    "/root/.bashrc",

		AptPackages: []string{
			"build-essential",
			"cmake",
			"curl",
			"git",
			"pkg-config",
			"software-properties-common",
			"unzip",
			"wget",
		},
		PythonPPA:     "ppa:deadsnakes/ppa",
		PythonVersion: "3.12",

		ProtocVersion:     "29.3",
		ProtocURLTemplate: "https://github.com/protocolbuffers/protobuf/releases/download/v%[1]s/protoc-%[1]s-linux-%[2]s.zip",
		ProtocPrefix:      "/usr/local",

		Server:        "vllm",
		Package:       "vllm",
		TorchBackend:  "cu128",
		TorchIndexURL: "https://download.pytorch.org/whl",

		ServiceName:  "vllm",
		ServerModule: "vllm.entrypoints.openai.api_server",
		ModelFlag:    "--model",
		UnitPath:     "/etc/systemd/system/vllm.service",
		WorkDir:      "/opt/vllm",
		ModelID:      "Qwen/Qwen2.5-1.5B-Instruct",
		ListenHost:   "0.0.0.0",
		ListenPort:   8000,
		RestartSec:   10,

		RecordPath:         "/var/lib/infersetup/last-run.pkl",
		StepTimeoutMinutes: 60,
	}
}

// ServerPreset is an inference server package and how to launch it.
type ServerPreset struct {
	Package   string
	Module    string
	ModelFlag string
}

var serverPresets = map[string]ServerPreset{
	"vllm":   {Package: "vllm", Module: "vllm.entrypoints.openai.api_server", ModelFlag: "--model"},
	"sglang": {Package: "sglang[all]", Module: "sglang.launch_server", ModelFlag: "--model-path"},
}

// ServerNames lists the known server presets.
func ServerNames() []string {
	names := make([]string, 0, len(serverPresets))
	for name := range serverPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UseServer switches the package, launch module and service naming to the
// named preset.
func (c *Config) UseServer(name string) error {
	p, ok := serverPresets[name]
	if !ok {
		return fmt.Errorf("unknown server %q (known: %s)", name, strings.Join(ServerNames(), ", "))
	}
	c.Server = name
	c.Package = p.Package
	c.ServerModule = p.Module
	c.ModelFlag = p.ModelFlag
	c.ServiceName = name
	c.UnitPath = "/etc/systemd/system/" + name + ".service"
	c.WorkDir = "/opt/" + name
	return nil
}

// Python returns the versioned interpreter name, e.g. "python3.12".
func (c *Config) Python() string {
	return "python" + c.PythonVersion
}

// Merge overlays every non-zero field of o onto c.
func (c *Config) Merge(o *Config) {
	if o == nil {
		return
	}
	setString(&c.ExpectedOSName, o.ExpectedOSName)
	setString(&c.ExpectedOSVersion, o.ExpectedOSVersion)
	setInt(&c.CUDAMajor, o.CUDAMajor)
	setString(&c.CUDAHome, o.CUDAHome)
	setString(&c.CUDADownloadURL, o.CUDADownloadURL)
	setString(&c.ShellProfile, o.ShellProfile)
	if len(o.AptPackages) > 0 {
		c.AptPackages = append([]string(nil), o.AptPackages...)
	}
	setString(&c.PythonPPA, o.PythonPPA)
	setString(&c.PythonVersion, o.PythonVersion)
	setString(&c.ProtocVersion, o.ProtocVersion)
	setString(&c.ProtocURLTemplate, o.ProtocURLTemplate)
	setString(&c.ProtocPrefix, o.ProtocPrefix)
	setString(&c.Server, o.Server)
	setString(&c.Package, o.Package)
	setString(&c.TorchBackend, o.TorchBackend)
	setString(&c.TorchIndexURL, o.TorchIndexURL)
	setString(&c.ServiceName, o.ServiceName)
	setString(&c.ServerModule, o.ServerModule)
	setString(&c.ModelFlag, o.ModelFlag)
	setString(&c.UnitPath, o.UnitPath)
	setString(&c.WorkDir, o.WorkDir)
	setString(&c.ModelID, o.ModelID)
	setString(&c.ListenHost, o.ListenHost)
	setInt(&c.ListenPort, o.ListenPort)
	setInt(&c.RestartSec, o.RestartSec)
	setString(&c.RecordPath, o.RecordPath)
	setInt(&c.StepTimeoutMinutes, o.StepTimeoutMinutes)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
