// Package feed exports simulated arrivals as GTFS-Realtime.
package feed

import (
	"fmt"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"paradero/internal/arrivals"
)

// Content types for the two encodings.
const (
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

// Build converts an arrivals frame into a FULL_DATASET feed. Each vehicle
// yields a VehiclePosition entity and a TripUpdate entity predicting its
// arrival at stopID.
func Build(stopID string, f arrivals.Frame, now time.Time) *gtfs.FeedMessage {
	ts := uint64(now.Unix())
	incrementality := gtfs.FeedHeader_FULL_DATASET

	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(ts),
		},
		Entity: make([]*gtfs.FeedEntity, 0, 2*len(f.Vehicles)),
	}

	for _, v := range f.Vehicles {
		trip := &gtfs.TripDescriptor{
			TripId:  proto.String(v.ID),
			RouteId: proto.String(v.Service),
		}
		vehicle := &gtfs.VehicleDescriptor{
			Id:    proto.String(v.ID),
			Label: proto.String(v.Service),
		}
		status := gtfs.VehiclePosition_IN_TRANSIT_TO

		msg.Entity = append(msg.Entity,
			&gtfs.FeedEntity{
				Id: proto.String("vp-" + v.ID),
				Vehicle: &gtfs.VehiclePosition{
					Trip:    trip,
					Vehicle: vehicle,
					Position: &gtfs.Position{
						Latitude:  proto.Float32(float32(v.Position.Lat)),
						Longitude: proto.Float32(float32(v.Position.Lng)),
					},
					StopId:        proto.String(stopID),
					CurrentStatus: &status,
					Timestamp:     proto.Uint64(ts),
				},
			},
			&gtfs.FeedEntity{
				Id: proto.String("tu-" + v.ID),
				TripUpdate: &gtfs.TripUpdate{
					Trip:    trip,
					Vehicle: vehicle,
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{{
						StopId: proto.String(stopID),
						Arrival: &gtfs.TripUpdate_StopTimeEvent{
							Time: proto.Int64(now.Unix() + int64(v.ETASeconds)),
						},
					}},
					Timestamp: proto.Uint64(ts),
				},
			},
		)
	}
	return msg
}

// Encode serializes msg as protobuf, or as protojson when format is "json".
func Encode(msg *gtfs.FeedMessage, format string) ([]byte, string, error) {
	switch format {
	case "", "pb", "protobuf":
		b, err := proto.Marshal(msg)
		if err != nil {
			return nil, "", fmt.Errorf("marshal feed: %w", err)
		}
		return b, ContentTypeProtobuf, nil
	case "json":
		b, err := protojson.MarshalOptions{Multiline: true, UseProtoNames: true}.Marshal(msg)
		if err != nil {
			return nil, "", fmt.Errorf("marshal feed json: %w", err)
		}
		return b, ContentTypeJSON, nil
	default:
		return nil, "", fmt.Errorf("unsupported feed format %q", format)
	}
}
