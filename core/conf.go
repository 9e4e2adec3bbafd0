package core

type Conf struct {
	Version            string `long:"version" description:"version of shadow engine" env:"SHADOW_ENGINE_VERSION"`
	DevMode            bool   `long:"dev-mode" description:"run in dev mode" env:"SHADOW_ENGINE_DEV_MODE"`
	DisableStdoutLog   bool   `long:"disable-stdout-log" description:"do not log in standard output" env:"SHADOW_ENGINE_DISABLE_STDOUT_LOG"`
	EnableFileLog      bool   `long:"enable-file-log" description:"enable log in file" env:"SHADOW_ENGINE_ENABLE_FILE_LOG"`
	LogDir             string `long:"log-dir" description:"rotating log file dir" default:"./shares/logs" env:"SHADOW_ENGINE_LOG_DIR"`
	LogLevel           string `long:"log-level" description:"log level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" env:"SHADOW_ENGINE_LOG_LEVEL"`
	LogRotationMaxDays int    `long:"log-rotation-max-days" description:"max days of log rotation" default:"7" env:"SHADOW_ENGINE_LOG_ROTATION_MAX_DAYS"`
	NumQubits          int    `long:"num-qubits" description:"qubit count of the simulator backend" default:"4" env:"SHADOW_ENGINE_NUM_QUBITS"`
	MaxShots           int    `long:"max-shots" description:"shot limit of the simulator backend" default:"100000" env:"SHADOW_ENGINE_MAX_SHOTS"`
	MaxBatch           int    `long:"max-batch" description:"circuit batch limit of the simulator backend" default:"500" env:"SHADOW_ENGINE_MAX_BATCH"`
	ReadoutFlip0to1    float64 `long:"readout-flip-0to1" description:"simulated probability of reading 1 for a prepared 0" default:"0" env:"SHADOW_ENGINE_READOUT_FLIP_0TO1"`
	ReadoutFlip1to0    float64 `long:"readout-flip-1to0" description:"simulated probability of reading 0 for a prepared 1" default:"0" env:"SHADOW_ENGINE_READOUT_FLIP_1TO0"`
	BackendSeed        int64  `long:"backend-seed" description:"seed of the simulator backend sampler, 0 means time-seeded" env:"SHADOW_ENGINE_BACKEND_SEED"`
	ArtifactDir        string `long:"artifact-dir" description:"directory for persisted records and confusion matrices" default:"./shares/artifacts" env:"SHADOW_ENGINE_ARTIFACT_DIR"`
	SettingPath        string `long:"setting-path" description:"setting file path" default:"./setting/setting.toml" env:"SHADOW_ENGINE_SETTING_PATH"`
}
