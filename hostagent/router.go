// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package hostagent

import (
	"github.com/gorilla/mux"
	"github.com/hpe-storage/dbrefresh/hostagent/handler"
	"github.com/hpe-storage/dbrefresh/util"
)

// NewRouter creates a new mux.Router
func NewRouter() *mux.Router {
	routes := []util.Route{
		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/v1/hosts
		// Description: 	This endpoint returns agent host information.
		// Input Object:	None
		// Output Object:	model.Host object
		// Sample Output:
		// {
		//     "data": {
		//         "name":  "SQLNODE01",
		//         "domain":  "corp.example.net"
		//     }
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "Hosts",
			Method:      "GET",
			Pattern:     "/api/v1/hosts",
			HandlerFunc: handler.GetHostInfo,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/v1/disks
		// Description: 	This endpoint returns all host disks, optionally filtered by serial
		//					number.
		// Input Object:	None
		// Output Object:	Array of model.HostDisk objects
		// Sample Output:
		// {
		//     "data": [
		//         {
		//             "number": 2,
		//             "serial_number": "6000c02a76b2ff3dbb8b42f60e7ad1f1",
		//             "friendly_name": "PURE FlashArray",
		//             "size": 107374182400,
		//             "is_offline": false
		//         }
		//     ]
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "Disks",
			Method:      "GET",
			Pattern:     "/api/v1/disks",
			HandlerFunc: handler.GetDisks,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/v1/disks/bypath
		// Description: 	This endpoint resolves the host disk backing the given access path
		//					(partition lookup followed by disk lookup, each requiring exactly one
		//					match).
		// Input Object:	None ("accessPath" query parameter required)
		// Output Object:	model.HostDisk object
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "DiskByPath",
			Method:      "GET",
			Pattern:     "/api/v1/disks/bypath",
			HandlerFunc: handler.GetDiskForPath,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/v1/partitions
		// Description: 	This endpoint returns all host partitions, optionally filtered by
		//					access path.
		// Input Object:	None
		// Output Object:	Array of model.DiskPartition objects
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "Partitions",
			Method:      "GET",
			Pattern:     "/api/v1/partitions",
			HandlerFunc: handler.GetPartitions,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		PUT /api/v1/disks/{diskNumber}/actions/offline
		// Description: 	Takes the disk offline at the host, or brings it back online.  This
		//					is a host-side state change only; the array volume is not touched.
		// Input Object:	model.DiskOfflineRequest, e.g. {"offline": true}
		// Output Object:	None (only Error details if request fails)
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "SetDiskOffline",
			Method:      "PUT",
			Pattern:     "/api/v1/disks/{diskNumber}/actions/offline",
			HandlerFunc: handler.SetDiskOffline,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/v1/keyfile
		// Description: 	Retrieves the authentication key file location.  The only endpoint
		//					that does not require the access key header.
		// Input Object:	None
		// Output Object:	model.KeyFileInfo object
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "Keyfile",
			Method:      "GET",
			Pattern:     "/api/v1/keyfile",
			HandlerFunc: handler.GetKeyfile,
		},
	}

	router := mux.NewRouter().StrictSlash(true)
	util.InitializeRouter(router, routes)
	return router
}
