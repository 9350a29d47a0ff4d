// Package vkquery backs the GPU timing ring with a real Vulkan
// VK_QUERY_TYPE_TIMESTAMP query pool. It owns nothing else: no
// swapchain, no pipelines, no vertex buffers - just enough of a Vulkan
// instance/device/queue to issue vkCmdWriteTimestamp into a dedicated
// command buffer and read results back with vkGetQueryPoolResults.
package vkquery

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
)

const maxQueries = 256

var (
	vulkanInitOnce sync.Once
	vulkanInitErr  error
)

func ensureVulkanLoaded() error {
	vulkanInitOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			vulkanInitErr = fmt.Errorf("failed to load Vulkan library: %w", err)
			return
		}
		vulkanInitErr = vk.Init()
	})
	return vulkanInitErr
}

// Source implements vsyncengine.GPUTimestampSource against a Vulkan
// timestamp query pool. One query slot per handle; handles are assigned
// by the caller (the GPU timing ring owns the numbering scheme).
type Source struct {
	mu sync.Mutex

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	queueFamily    uint32

	commandPool   vk.CommandPool
	commandBuffer vk.CommandBuffer
	fence         vk.Fence

	queryPool   vk.QueryPool
	timestampNS float64 // nanoseconds per timestamp tick, from device limits

	pending map[int]bool
}

// New initializes a minimal offscreen Vulkan context and a query pool
// large enough for maxQueries in-flight timestamp handles.
func New() (*Source, error) {
	if err := ensureVulkanLoaded(); err != nil {
		return nil, err
	}
	s := &Source{pending: make(map[int]bool)}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) init() error {
	if err := s.createInstance(); err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	if err := s.selectPhysicalDevice(); err != nil {
		s.destroyInstance()
		return fmt.Errorf("select physical device: %w", err)
	}
	if err := s.createDevice(); err != nil {
		s.destroyInstance()
		return fmt.Errorf("create device: %w", err)
	}
	if err := s.createCommandPool(); err != nil {
		s.destroyDevice()
		s.destroyInstance()
		return fmt.Errorf("create command pool: %w", err)
	}
	if err := s.createQueryPool(); err != nil {
		s.destroyCommandPool()
		s.destroyDevice()
		s.destroyInstance()
		return fmt.Errorf("create query pool: %w", err)
	}
	return nil
}

func (s *Source) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   "vsyncengine-vkquery\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "vsyncengine\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance failed: %d", res)
	}
	s.instance = instance
	vk.InitInstance(instance)
	return nil
}

func (s *Source) selectPhysicalDevice() error {
	var deviceCount uint32
	vk.EnumeratePhysicalDevices(s.instance, &deviceCount, nil)
	if deviceCount == 0 {
		return fmt.Errorf("no Vulkan-capable GPUs found")
	}
	devices := make([]vk.PhysicalDevice, deviceCount)
	vk.EnumeratePhysicalDevices(s.instance, &deviceCount, devices)

	for _, device := range devices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &props)
		props.Deref()
		props.Limits.Deref()
		if props.Limits.TimestampComputeAndGraphics == vk.False {
			continue
		}

		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

		for i, qf := range queueFamilies {
			qf.Deref()
			if qf.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 && qf.TimestampValidBits > 0 {
				s.physicalDevice = device
				s.queueFamily = uint32(i)
				s.timestampNS = float64(props.Limits.TimestampPeriod)
				return nil
			}
		}
	}
	return fmt.Errorf("no GPU with a timestamp-capable graphics queue found")
}

func (s *Source) createDevice() error {
	queuePriority := float32(1.0)
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: s.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{queuePriority},
	}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueCreateInfo},
	}
	var device vk.Device
	if res := vk.CreateDevice(s.physicalDevice, &deviceCreateInfo, nil, &device); res != vk.Success {
		return fmt.Errorf("vkCreateDevice failed: %d", res)
	}
	s.device = device
	var queue vk.Queue
	vk.GetDeviceQueue(device, s.queueFamily, 0, &queue)
	s.queue = queue
	return nil
}

func (s *Source) createCommandPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: s.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(s.device, &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool failed: %d", res)
	}
	s.commandPool = pool

	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(s.device, &allocInfo, buffers); res != vk.Success {
		return fmt.Errorf("vkAllocateCommandBuffers failed: %d", res)
	}
	s.commandBuffer = buffers[0]

	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	if res := vk.CreateFence(s.device, &fenceInfo, nil, &fence); res != vk.Success {
		return fmt.Errorf("vkCreateFence failed: %d", res)
	}
	s.fence = fence
	return nil
}

func (s *Source) createQueryPool() error {
	poolInfo := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: maxQueries,
	}
	var pool vk.QueryPool
	if res := vk.CreateQueryPool(s.device, &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateQueryPool failed: %d", res)
	}
	s.queryPool = pool
	return nil
}

// QueryTimestamp records a timestamp into the query pool slot for handle,
// submitting a tiny one-command command buffer immediately. Real engines
// batch this into an existing frame's command buffer; here it stands
// alone since there is no rendering to piggy-back on.
func (s *Source) QueryTimestamp(handle int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := uint32(handle % maxQueries)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	vk.BeginCommandBuffer(s.commandBuffer, &beginInfo)
	vk.CmdResetQueryPool(s.commandBuffer, s.queryPool, slot, 1)
	vk.CmdWriteTimestamp(s.commandBuffer, vk.PipelineStageBottomOfPipeBit, s.queryPool, slot)
	vk.EndCommandBuffer(s.commandBuffer)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{s.commandBuffer},
	}
	vk.QueueSubmit(s.queue, 1, []vk.SubmitInfo{submitInfo}, s.fence)
	vk.WaitForFences(s.device, 1, []vk.Fence{s.fence}, vk.True, ^uint64(0))
	vk.ResetFences(s.device, 1, []vk.Fence{s.fence})

	s.pending[handle] = true
}

// QueryResultAvailable reports whether handle's result can be read without
// blocking. Submission above is synchronous, so by the time QueryTimestamp
// returns the result is already available - this mirrors the interface's
// general contract for GPU backends where submission is asynchronous.
func (s *Source) QueryResultAvailable(handle int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[handle]
}

// QueryResult reads back the GPU timestamp for handle, converted to
// nanoseconds using the device's reported timestamp period.
func (s *Source) QueryResult(handle int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := uint32(handle % maxQueries)
	var raw uint64
	data := make([]byte, 8)
	res := vk.GetQueryPoolResults(s.device, s.queryPool, slot, 1, uint(len(data)), data, 8,
		vk.QueryResultFlags(vk.QueryResult64Bit)|vk.QueryResultFlags(vk.QueryResultWaitBit))
	if res != vk.Success {
		return 0
	}
	raw = uint64(data[0]) | uint64(data[1])<<8 | uint64(data[2])<<16 | uint64(data[3])<<24 |
		uint64(data[4])<<32 | uint64(data[5])<<40 | uint64(data[6])<<48 | uint64(data[7])<<56
	delete(s.pending, handle)
	return uint64(float64(raw) * s.timestampNS)
}

// Flush is a no-op: QueryTimestamp already submits and waits synchronously,
// so there is never a queued-but-unsubmitted command buffer to force out.
func (s *Source) Flush() {}

// Close releases the Vulkan objects this adapter owns.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryPool != vk.NullQueryPool {
		vk.DestroyQueryPool(s.device, s.queryPool, nil)
	}
	if s.fence != vk.NullFence {
		vk.DestroyFence(s.device, s.fence, nil)
	}
	s.destroyCommandPool()
	s.destroyDevice()
	s.destroyInstance()
}

func (s *Source) destroyCommandPool() {
	if s.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(s.device, s.commandPool, nil)
	}
}

func (s *Source) destroyDevice() {
	if s.device != vk.NullDevice {
		vk.DestroyDevice(s.device, nil)
	}
}

func (s *Source) destroyInstance() {
	if s.instance != vk.NullInstance {
		vk.DestroyInstance(s.instance, nil)
	}
}
