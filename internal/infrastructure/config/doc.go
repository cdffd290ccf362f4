// Package config handles loading and validating the onroad manager configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The historical process switches PREPAREONLY, NOBOARD, BLOCK and USE_WEBCAM
// are read once at load time. Later changes to the environment have no effect
// on a running manager.
//
// Security Considerations:
//   - Broker passwords and Influx tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Params.Primary.Path)
package config
