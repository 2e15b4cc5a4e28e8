// Package services implements the driving ports.
//
// IngestionService records submitted documents and queues them. Worker
// consumes the queue and hands each job to Pipeline, which runs the
// download, extract, chunk, embed and store stages and records progress
// in the status store. AnswerService runs retrieval and generation for
// a question.
//
// Services depend only on domain types and driven ports.
package services
