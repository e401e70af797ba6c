package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskTicketPipeline = "ticket.pipeline"

const TaskTicketWebDeals = "ticket.webdeals"

const TaskStoreCallTimeout = "storecall.timeout"

type TicketPipelinePayload struct {
	TicketID string `json:"ticketId"`
}

type TicketWebDealsPayload struct {
	TicketID string `json:"ticketId"`
}

type StoreCallTimeoutPayload struct {
	TicketID    string `json:"ticketId"`
	StoreCallID string `json:"storeCallId"`
}

func NewTicketPipelineTask(payload TicketPipelinePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTicketPipeline, data), nil
}

func ParseTicketPipelinePayload(task *asynq.Task) (TicketPipelinePayload, error) {
	var payload TicketPipelinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TicketPipelinePayload{}, err
	}
	return payload, nil
}

func NewTicketWebDealsTask(payload TicketWebDealsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTicketWebDeals, data), nil
}

func ParseTicketWebDealsPayload(task *asynq.Task) (TicketWebDealsPayload, error) {
	var payload TicketWebDealsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TicketWebDealsPayload{}, err
	}
	return payload, nil
}

func NewStoreCallTimeoutTask(payload StoreCallTimeoutPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStoreCallTimeout, data), nil
}

func ParseStoreCallTimeoutPayload(task *asynq.Task) (StoreCallTimeoutPayload, error) {
	var payload StoreCallTimeoutPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StoreCallTimeoutPayload{}, err
	}
	return payload, nil
}
