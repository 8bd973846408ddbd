// Package main y12 API
//
// @title           y12 API
// @version         1.0
// @description     Build kit generation for custom Linux images: kernel config, build script, container files and validation, with hand-off to an external ISO runner.
//
// @host            localhost:8080
// @BasePath        /
// @schemes         http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Build secret or per-job callback token. Prefix it with "Bearer ".
package main
