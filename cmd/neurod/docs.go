package main

// General API documentation for swaggo. The served documents are built in
// internal/httpapi/swagger.go, one per service.
//
// @title           neurod API
// @version         1.0.1
// @description     EEG and MRI classifiers and the NeuroPath chat proxy.
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
//
// @BasePath  /
//
// @schemes http
