package rpc

import (
	"encoding/base64"
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/warpcomdev/inferpipe/internal/predict"
)

// command is the protocol-buffer envelope published to the routing
// key (spec §4.6: "encodes the bytes into a protocol-buffer command").
// It is built on structpb.Struct rather than a hand-generated message
// type, since the pipeline cannot run protoc; the record payload
// itself travels as a JSON string field inside the struct, keeping the
// wire envelope genuinely protobuf while reusing predict.Record's
// existing JSON tags for the payload shape.
func encodeCommand(recognitionID, frameName string, encoded []byte) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"recognition_id": recognitionID,
		"frame_name":     frameName,
		"image_b64":      base64.StdEncoding.EncodeToString(encoded),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodeCommand(data []byte) (recognitionID, frameName string, encoded []byte, err error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return "", "", nil, err
	}
	recognitionID = s.Fields["recognition_id"].GetStringValue()
	frameName = s.Fields["frame_name"].GetStringValue()
	encoded, err = base64.StdEncoding.DecodeString(s.Fields["image_b64"].GetStringValue())
	return recognitionID, frameName, encoded, err
}

// reply is the response envelope: status plus the JSON-encoded Record
// on success.
func encodeReply(status, errMsg string, record *predict.Record) ([]byte, error) {
	recordJSON := ""
	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		recordJSON = string(data)
	}
	s, err := structpb.NewStruct(map[string]any{
		"status":      status,
		"error":       errMsg,
		"record_json": recordJSON,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodeReply(data []byte) (status, errMsg string, record *predict.Record, err error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return "", "", nil, err
	}
	status = s.Fields["status"].GetStringValue()
	errMsg = s.Fields["error"].GetStringValue()
	recordJSON := s.Fields["record_json"].GetStringValue()
	if recordJSON == "" {
		return status, errMsg, nil, nil
	}
	record = &predict.Record{}
	if err := json.Unmarshal([]byte(recordJSON), record); err != nil {
		return status, errMsg, nil, err
	}
	return status, errMsg, record, nil
}
